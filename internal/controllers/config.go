// Package controllers holds the employee bill screens as plain Go types.
// Controllers never touch HTTP: collaborators arrive through Config and
// results come back as view values the templates render.
package controllers

import (
	"errors"
	"fmt"
	"time"

	"github.com/csg33k/billed/internal/metrics"
	"github.com/csg33k/billed/internal/ports"
)

// SubmitMode selects how the new-bill form treats the store write.
type SubmitMode string

const (
	// SubmitOptimistic navigates to the listing immediately and writes the
	// bill in the background. Write failures are logged and counted only.
	SubmitOptimistic SubmitMode = "optimistic"
	// SubmitConsistent waits for the write and keeps the user on the form
	// with an inline error when it fails.
	SubmitConsistent SubmitMode = "consistent"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultModalWidth   = 800
)

// Config carries every collaborator a controller needs.
type Config struct {
	Session   ports.SessionReader
	Navigator ports.Navigator
	Modal     ports.ModalDisplay
	Bills     ports.BillRepository
	Storage   ports.FileStorage
	Metrics   *metrics.Metrics

	SubmitMode SubmitMode
	// WriteTimeout bounds background bill writes in optimistic mode.
	WriteTimeout time.Duration
	// ModalWidth is the attachment modal width in pixels; the preview image
	// takes half of it.
	ModalWidth int
}

func (c Config) validate() error {
	var errs []error
	if c.Session == nil {
		errs = append(errs, errors.New("session reader is required"))
	}
	if c.Navigator == nil {
		errs = append(errs, errors.New("navigator is required"))
	}
	if c.Bills == nil {
		errs = append(errs, errors.New("bill repository is required"))
	}
	switch c.SubmitMode {
	case "", SubmitOptimistic, SubmitConsistent:
	default:
		errs = append(errs, fmt.Errorf("unknown submit mode %q", c.SubmitMode))
	}
	return errors.Join(errs...)
}

func (c Config) withDefaults() Config {
	if c.SubmitMode == "" {
		c.SubmitMode = SubmitOptimistic
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.ModalWidth <= 0 {
		c.ModalWidth = defaultModalWidth
	}
	return c
}
