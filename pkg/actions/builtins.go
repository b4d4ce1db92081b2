package actions

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	CreateDirectoryAction = "create_directory"
	WriteFileAction       = "write_file"
)

type CreateDirectoryInput struct {
	Path          string `json:"path" jsonschema:"description=The full path where the directory should be created"`
	DirectoryName string `json:"directory_name" jsonschema:"description=The name of the directory to create"`
}

type WriteFileInput struct {
	DirectoryPath string `json:"directory_path" jsonschema:"description=The path to the directory where the file should be created"`
	FileName      string `json:"file_name" jsonschema:"description=Name of the file including its extension"`
	Content       string `json:"content" jsonschema:"description=Content to write to the file"`
}

// Filesystem implements the built-in filesystem actions on top of an afero.Fs.
type Filesystem struct {
	fs     afero.Fs
	policy PathPolicy
}

type FilesystemOption func(*Filesystem)

func WithPathPolicy(policy PathPolicy) FilesystemOption {
	return func(f *Filesystem) {
		f.policy = policy
	}
}

func NewFilesystem(fs afero.Fs, options ...FilesystemOption) *Filesystem {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	ret := &Filesystem{fs: fs}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// CreateDirectory creates base/name and any missing parents. Creating a directory
// that already exists succeeds.
func (f *Filesystem) CreateDirectory(ctx context.Context, in CreateDirectoryInput) Result {
	base, err := ExpandPath(in.Path)
	if err != nil {
		return NewFailureResult(fmt.Sprintf("Error creating directory: %v", err))
	}
	fullPath := filepath.Join(base, in.DirectoryName)

	if err := f.policy.Check(fullPath); err != nil {
		return NewFailureResult(fmt.Sprintf("Error creating directory: %v", err))
	}

	if err := f.fs.MkdirAll(fullPath, 0o755); err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("path", fullPath).Msg("create directory failed")
		return NewFailureResult(fmt.Sprintf("Error creating directory: %v", err))
	}

	return NewSuccessResult(fmt.Sprintf("Directory created successfully at: %s", fullPath), fullPath)
}

// WriteFile writes content to directory/name, creating the directory if needed.
func (f *Filesystem) WriteFile(ctx context.Context, in WriteFileInput) Result {
	dir, err := ExpandPath(in.DirectoryPath)
	if err != nil {
		return NewFailureResult(fmt.Sprintf("Error writing file: %v", err))
	}
	if in.FileName == "" {
		return NewFailureResult("Error writing file: file name is empty")
	}
	fullPath := filepath.Join(dir, in.FileName)

	if err := f.policy.Check(fullPath); err != nil {
		return NewFailureResult(fmt.Sprintf("Error writing file: %v", err))
	}

	if err := f.fs.MkdirAll(dir, 0o755); err != nil {
		return NewFailureResult(fmt.Sprintf("Error writing file: %v", err))
	}
	if err := afero.WriteFile(f.fs, fullPath, []byte(in.Content), 0o644); err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("path", fullPath).Msg("write file failed")
		return NewFailureResult(fmt.Sprintf("Error writing file: %v", err))
	}

	return NewSuccessResult(fmt.Sprintf("File written successfully at: %s", fullPath), fullPath)
}

// RegisterBuiltins registers create_directory and write_file.
func RegisterBuiltins(reg *Registry, f *Filesystem) error {
	if err := reg.Register(
		CreateDirectoryAction,
		"Creates a directory at the specified path. Can create nested directories if they don't exist.",
		f.CreateDirectory,
	); err != nil {
		return err
	}
	return reg.Register(
		WriteFileAction,
		"Writes text content to a file in the specified directory. Creates the directory if it doesn't exist.",
		f.WriteFile,
	)
}
