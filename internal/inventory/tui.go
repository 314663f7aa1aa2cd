package inventory

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/tis24dev/ctshift/internal/input"
	"github.com/tis24dev/ctshift/internal/pve"
	"github.com/tis24dev/ctshift/internal/tui"
	"github.com/tis24dev/ctshift/internal/tui/components"
)

// runEntityForm drives the tview selection screen: a list of entities plus
// an input field for the new identifier. Returns errTUIUnavailable when the
// screen cannot start so the caller can fall back to text prompts.
func runEntityForm(entities []pve.Entity, validateNewID func(int) error) (Selection, error) {
	app := tui.NewApp()

	list := tview.NewList().ShowSecondaryText(false)
	for _, e := range entities {
		list.AddItem(fmt.Sprintf("%s %s [%s]", tui.StatusSymbol(e.Status.String()), e.Label(), e.Status), "", 0, nil)
	}
	height := len(entities) + 1
	if height > 12 {
		height = 12
	}
	item := components.NewListFormItem(list).
		SetLabel("Entity").
		SetFieldHeight(height)

	var (
		result   Selection
		done     bool
		canceled bool
	)

	form := components.NewForm(app)
	form.AddFormItem(item)
	form.AddInputFieldWithValidation("New ID", "", 12, func(value string) error {
		id, err := ParseID(value)
		if err != nil {
			return err
		}
		selected := entities[list.GetCurrentItem()]
		if id == selected.ID {
			return fmt.Errorf("new identifier %d is the same as the current one", id)
		}
		return validateNewID(id)
	})
	form.SetOnSubmit(func(values map[string]string) error {
		id, err := ParseID(values["New ID"])
		if err != nil {
			return err
		}
		result = Selection{Entity: entities[list.GetCurrentItem()], NewID: id}
		done = true
		return nil
	})
	form.SetOnCancel(func() { canceled = true })
	form.AddSubmitButton("Migrate")
	form.AddCancelButton("Cancel")
	form.SetParentView(form)
	form.SetBorderWithTitle("ctshift — change container / VM ID")

	if err := app.SetRoot(form, true).Run(); err != nil {
		return Selection{}, fmt.Errorf("%w: %v", errTUIUnavailable, err)
	}
	if canceled || !done {
		return Selection{}, input.ErrInputAborted
	}

	// Final gate: everything after this point is destructive.
	confirmApp := tui.NewApp()
	confirmed := false
	components.ShowConfirm(confirmApp, "Confirm migration",
		fmt.Sprintf("Change %s to identifier %d?\nThe old entity will be destroyed once the new one is verified running.", result.Entity.Label(), result.NewID),
		func() { confirmed = true }, nil)
	if err := confirmApp.Run(); err != nil {
		return Selection{}, fmt.Errorf("%w: %v", errTUIUnavailable, err)
	}
	if !confirmed {
		return Selection{}, input.ErrInputAborted
	}
	return result, nil
}
