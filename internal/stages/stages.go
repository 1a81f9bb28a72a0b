package stages

import (
	"fmt"

	"github.com/satchelworks/satchel/internal/ai"
	"github.com/satchelworks/satchel/internal/bundle"
)

// Deps carries the collaborators stages need beyond the bundle itself.
type Deps struct {
	// Summarizer may be nil; the summarize stage then passes through.
	Summarizer *ai.Client
	// Lenient downgrades filter pattern failures to "keep what matched".
	Lenient bool
}

// Pack returns the full stage list for a pack run, in execution order.
func Pack(deps Deps) []interface{} {
	return []interface{}{
		&Workspace{},
		&Discover{},
		&Filter{Lenient: deps.Lenient},
		&GitStatus{},
		&Binary{},
		&Charset{},
		&Load{},
		&Dedup{},
		&Transform{},
		&Summarize{Client: deps.Summarizer},
		&Sort{},
		&Budget{},
		&Render{},
		&Deliver{},
	}
}

// asBundle narrows the pipeline's context value. Every stage begins here;
// a wrong type means the pipeline was misassembled, which validation at
// the head of the run reports as fatal.
func asBundle(value interface{}) (*bundle.Bundle, error) {
	b, ok := value.(*bundle.Bundle)
	if !ok {
		return nil, fmt.Errorf("expected *bundle.Bundle, got %T", value)
	}
	return b, nil
}
