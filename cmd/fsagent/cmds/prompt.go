package cmds

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-go-golems/fsagent/pkg/actions"
	"github.com/pkg/errors"
	"github.com/tcnksm/go-input"
)

var examplePrompts = []string{
	"create a directory for storing the testing results in my pc desktop location",
	"make a folder called 'ProjectData' on my desktop",
	"I need a directory named 'backup_2024' on the desktop",
	"create 4 essays regarding artificial intelligence and each of them consisting of 3 sentences. " +
		"and store these 4 essays in a directory called essay in {cwd}. " +
		"Name them essay_1.txt, essay_2.txt, essay_3.txt, and essay_4.txt",
}

// ExamplePrompt returns the n-th built-in prompt, counting from 1.
func ExamplePrompt(n int) (string, error) {
	if n < 1 || n > len(examplePrompts) {
		return "", errors.Errorf("example must be between 1 and %d", len(examplePrompts))
	}
	return strings.ReplaceAll(examplePrompts[n-1], "{cwd}", actions.WorkingDirectory()), nil
}

func ListExamples(w io.Writer) error {
	for i, p := range examplePrompts {
		if _, err := fmt.Fprintf(w, "%d. %s\n", i+1, p); err != nil {
			return err
		}
	}
	return nil
}

type promptSource struct {
	args    []string
	example int
	reader  io.Reader
	writer  io.Writer
}

// resolve picks the prompt from the arguments, a built-in example, or asks for one.
func (p promptSource) resolve() (string, error) {
	if len(p.args) > 0 {
		prompt := strings.TrimSpace(strings.Join(p.args, " "))
		if prompt != "" {
			return prompt, nil
		}
	}
	if p.example > 0 {
		return ExamplePrompt(p.example)
	}
	if p.reader == nil {
		return "", errors.New("no prompt given")
	}

	ui := &input.UI{
		Writer: p.writer,
		Reader: p.reader,
	}
	answer, err := ui.Ask("Enter your request", &input.Options{
		Required:  true,
		Loop:      false,
		HideOrder: true,
	})
	if err != nil {
		return "", errors.Wrap(err, "could not read prompt")
	}
	return strings.TrimSpace(answer), nil
}
