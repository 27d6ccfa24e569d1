package sugar

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrorModel is a model that can finish with an error of its own.
type ErrorModel interface {
	tea.Model
	GetError() error
}

// RunProgram runs model and returns the final model with its error. Bubble
// Tea errors override the model's.
func RunProgram[M ErrorModel](model M, opts ...tea.ProgramOption) (M, error) {
	final, err := tea.NewProgram(model, opts...).Run()
	if err != nil {
		return model, err
	}

	result, ok := final.(M)
	if !ok {
		return model, fmt.Errorf("program finished with unexpected model %T", final)
	}
	return result, result.GetError()
}
