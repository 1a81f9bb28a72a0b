// Package stages holds the processing units of a pack run. Each stage
// takes the run's *bundle.Bundle, annotates or reshapes it, and hands it
// to the next. Pack returns the full ordered list for registration on the
// engine.
package stages
