// Package cli parses command-line arguments into a validated app.Config.
package cli
