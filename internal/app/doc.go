// Package app wires the sweep runner together: validated configuration,
// logging, the optional status server, and the dispatch between the
// model-selection and size-sensitivity modes.
package app
