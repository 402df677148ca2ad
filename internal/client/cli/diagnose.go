package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/molecheck/internal/client/guard"
	"github.com/dmitrijs2005/molecheck/internal/client/services"
	"github.com/dmitrijs2005/molecheck/internal/client/upload"
)

// Diagnose loads the image at path, submits it and shows the result. With
// save the result is stored in the history right away; otherwise it stays
// pending until Save or Reset.
func (a *App) Diagnose(ctx context.Context, path string, save bool) error {
	if err := a.enter(guard.GroupProtected); err != nil {
		return a.report(err)
	}

	a.discardPending()
	img, err := upload.Open(path)
	if err != nil {
		return a.report(err)
	}

	fmt.Fprintf(a.out, "Analyzing %s (%s, %dx%d)...\n", img.Path, img.Format, img.Width, img.Height)
	res, err := a.diag.Submit(ctx, img)
	if err != nil {
		img.Reset()
		return a.report(err)
	}
	a.pending, a.result = img, &res
	renderResult(a.out, res)

	if save {
		return a.Save(ctx)
	}
	if a.oneShot {
		a.discardPending()
		fmt.Fprintln(a.out, "Not saved. Run again with --save to keep this result.")
		return nil
	}
	fmt.Fprintln(a.out, "Use 'save' to keep this result or 'reset' to discard it.")
	return nil
}

// Save stores the pending result.
func (a *App) Save(ctx context.Context) error {
	if err := a.enter(guard.GroupProtected); err != nil {
		return a.report(err)
	}
	if a.result == nil || a.pending.Empty() {
		return a.report(errNothingToSave)
	}

	rec, err := a.diag.Save(ctx, a.pending, *a.result)
	if err != nil {
		return a.report(err)
	}
	a.discardPending()
	if rec.ID != 0 {
		fmt.Fprintf(a.out, "Saved as diagnosis #%d.\n", rec.ID)
	} else {
		fmt.Fprintln(a.out, "Saved.")
	}
	return nil
}

// Reset discards the pending image and result.
func (a *App) Reset(context.Context) error {
	a.discardPending()
	fmt.Fprintln(a.out, "Discarded.")
	return nil
}

// History fetches and prints the user's saved diagnoses, newest first.
func (a *App) History(ctx context.Context) error {
	if err := a.enter(guard.GroupProtected); err != nil {
		return a.report(err)
	}

	records, err := a.diag.History(ctx)
	if err != nil {
		return a.report(err)
	}
	renderHistory(a.out, records)
	return nil
}

// Delete removes a saved diagnosis after confirmation. confirm may be nil
// to use the App's confirmer.
func (a *App) Delete(ctx context.Context, id int64, confirm services.Confirmer) error {
	if err := a.enter(guard.GroupProtected); err != nil {
		return a.report(err)
	}
	if confirm == nil {
		confirm = a.confirm
	}

	outcome, err := a.diag.Delete(ctx, id, confirm)
	if err != nil {
		return a.report(err)
	}
	switch outcome {
	case services.Deleted:
		fmt.Fprintf(a.out, "Diagnosis #%d deleted.\n", id)
	case services.AlreadyGone:
		fmt.Fprintf(a.out, "Diagnosis #%d was already deleted.\n", id)
	case services.Cancelled:
		fmt.Fprintln(a.out, "Cancelled.")
	}
	return nil
}

// Labels prints the lesion catalog. It needs no session.
func (a *App) Labels(context.Context) error {
	renderLabels(a.out)
	return nil
}
