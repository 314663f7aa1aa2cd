// Package inventory enumerates containers and virtual machines and produces
// exactly one validated (current, new) identifier pair for a migration run.
package inventory

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/tis24dev/ctshift/internal/input"
	"github.com/tis24dev/ctshift/internal/logging"
	"github.com/tis24dev/ctshift/internal/pve"
)

// ErrNoEntities is returned when the node has no containers and no virtual
// machines. There is nothing to migrate; the run fails fast.
var ErrNoEntities = errors.New("no containers or virtual machines found on this node")

// ErrInvalidSelection classifies user errors (malformed identifiers,
// unknown entities, collisions) so callers can map them to the validation
// exit code. Test with errors.Is.
var ErrInvalidSelection = errors.New("invalid selection")

// errTUIUnavailable makes the selector fall back to the plain-text prompt
// when the tview application cannot start.
var errTUIUnavailable = errors.New("interactive screen unavailable")

type selectionError struct{ err error }

func (e *selectionError) Error() string { return e.err.Error() }

func (e *selectionError) Unwrap() []error { return []error{ErrInvalidSelection, e.err} }

func invalid(format string, args ...interface{}) error {
	return &selectionError{err: fmt.Errorf(format, args...)}
}

var idPattern = regexp.MustCompile(`^[0-9]+$`)

// Platform is the slice of the platform client the selector needs.
type Platform interface {
	ListContainers(ctx context.Context) ([]pve.Entity, error)
	ListVMs(ctx context.Context) ([]pve.Entity, error)
	Describe(ctx context.Context, e *pve.Entity) error
	Exists(ctx context.Context, id int) (bool, error)
}

// Selection is the validated outcome of entity selection.
type Selection struct {
	Entity pve.Entity
	NewID  int
}

// Selector resolves the migration pair from CLI arguments or interactively.
type Selector struct {
	platform Platform
	logger   *logging.Logger

	// ForceText disables the tview screen even on a terminal.
	ForceText bool

	stdin      io.Reader
	stdout     io.Writer
	isTerminal func() bool
	tuiSelect  func(entities []pve.Entity, validateNewID func(int) error) (Selection, error)
}

// NewSelector creates a selector bound to the process stdin/stdout.
func NewSelector(platform Platform, logger *logging.Logger) *Selector {
	s := &Selector{
		platform: platform,
		logger:   logger,
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
		},
	}
	s.tuiSelect = runEntityForm
	return s
}

// ParseID validates a user-supplied identifier: digits only, positive.
func ParseID(s string) (int, error) {
	if !idPattern.MatchString(s) {
		return 0, invalid("identifier %q is not a positive number", s)
	}
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, invalid("identifier %q is not a positive number", s)
	}
	return id, nil
}

// Inventory lists all containers and VMs with their config details filled
// in, sorted by identifier.
func (s *Selector) Inventory(ctx context.Context) ([]pve.Entity, error) {
	cts, err := s.platform.ListContainers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	vms, err := s.platform.ListVMs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list virtual machines: %w", err)
	}

	entities := append(cts, vms...)
	if len(entities) == 0 {
		return nil, ErrNoEntities
	}
	for i := range entities {
		if err := s.platform.Describe(ctx, &entities[i]); err != nil {
			return nil, fmt.Errorf("read config of %s: %w", entities[i].Label(), err)
		}
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })
	return entities, nil
}

// ValidateNewID checks a target identifier against the live inventory: it
// must differ from the current one and must not collide with any existing
// container or VM.
func (s *Selector) ValidateNewID(ctx context.Context, current, newID int) error {
	if newID == current {
		return invalid("new identifier %d is the same as the current one", newID)
	}
	taken, err := s.platform.Exists(ctx, newID)
	if err != nil {
		return err
	}
	if taken {
		return invalid("identifier %d is already in use", newID)
	}
	return nil
}

// Select resolves the migration pair. Non-empty currentArg/newArg come from
// the command line and are validated without prompting; missing pieces are
// asked for interactively.
func (s *Selector) Select(ctx context.Context, currentArg, newArg string) (Selection, error) {
	entities, err := s.Inventory(ctx)
	if err != nil {
		return Selection{}, err
	}

	var entity pve.Entity
	haveEntity := false
	if currentArg != "" {
		id, err := ParseID(currentArg)
		if err != nil {
			return Selection{}, err
		}
		for _, e := range entities {
			if e.ID == id {
				entity, haveEntity = e, true
				break
			}
		}
		if !haveEntity {
			return Selection{}, invalid("no container or virtual machine with identifier %d", id)
		}
	}

	newID := 0
	if newArg != "" {
		id, err := ParseID(newArg)
		if err != nil {
			return Selection{}, err
		}
		newID = id
	}

	if haveEntity && newID != 0 {
		if err := s.ValidateNewID(ctx, entity.ID, newID); err != nil {
			return Selection{}, err
		}
		return Selection{Entity: entity, NewID: newID}, nil
	}

	if haveEntity {
		// Only the new identifier is missing.
		newID, err = s.promptNewID(ctx, entity.ID)
		if err != nil {
			return Selection{}, err
		}
		return Selection{Entity: entity, NewID: newID}, nil
	}

	return s.selectInteractive(ctx, entities)
}

func (s *Selector) selectInteractive(ctx context.Context, entities []pve.Entity) (Selection, error) {
	if !s.ForceText && s.isTerminal() {
		validate := func(id int) error {
			return s.ValidateNewID(ctx, 0, id)
		}
		sel, err := s.tuiSelect(entities, validate)
		if err == nil {
			return sel, nil
		}
		if !errors.Is(err, errTUIUnavailable) {
			return Selection{}, err
		}
		s.logger.Debug("Interactive screen unavailable, using text prompts: %v", err)
	}
	return s.selectText(ctx, entities)
}

// selectText is the plain-text fallback: a numbered menu that re-prompts
// until a valid choice is made.
func (s *Selector) selectText(ctx context.Context, entities []pve.Entity) (Selection, error) {
	reader := bufio.NewReader(s.stdin)

	fmt.Fprintln(s.stdout, "Available containers and virtual machines:")
	for i, e := range entities {
		fmt.Fprintf(s.stdout, "  %2d) %s [%s]\n", i+1, e.Label(), e.Status)
	}

	var entity pve.Entity
	for {
		fmt.Fprintf(s.stdout, "Select entity [1-%d]: ", len(entities))
		line, err := input.ReadTrimmedLine(ctx, reader)
		if err != nil {
			return Selection{}, err
		}
		choice, err := strconv.Atoi(line)
		if err != nil || choice < 1 || choice > len(entities) {
			fmt.Fprintf(s.stdout, "Invalid choice %q, enter a number between 1 and %d.\n", line, len(entities))
			continue
		}
		entity = entities[choice-1]
		break
	}

	newID, err := s.promptNewIDWithReader(ctx, reader, entity.ID)
	if err != nil {
		return Selection{}, err
	}

	// Final gate: everything after this point is destructive.
	for {
		fmt.Fprintf(s.stdout, "Change %s to identifier %d? [y/N]: ", entity.Label(), newID)
		line, err := input.ReadTrimmedLine(ctx, reader)
		if err != nil {
			return Selection{}, err
		}
		switch strings.ToLower(line) {
		case "y", "yes":
			return Selection{Entity: entity, NewID: newID}, nil
		case "n", "no", "":
			return Selection{}, input.ErrInputAborted
		}
	}
}

func (s *Selector) promptNewID(ctx context.Context, current int) (int, error) {
	return s.promptNewIDWithReader(ctx, bufio.NewReader(s.stdin), current)
}

func (s *Selector) promptNewIDWithReader(ctx context.Context, reader *bufio.Reader, current int) (int, error) {
	for {
		fmt.Fprint(s.stdout, "New identifier: ")
		line, err := input.ReadTrimmedLine(ctx, reader)
		if err != nil {
			return 0, err
		}
		id, err := ParseID(line)
		if err != nil {
			fmt.Fprintf(s.stdout, "%v\n", err)
			continue
		}
		if err := s.ValidateNewID(ctx, current, id); err != nil {
			fmt.Fprintf(s.stdout, "%v\n", err)
			continue
		}
		return id, nil
	}
}
