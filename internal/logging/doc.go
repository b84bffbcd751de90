// Package logging builds the logrus logger shared by the CLI and the engine.
package logging
