// Package planner derives suggested cleanup actions from a category and
// the email's attributes. It is pure: no external state, no errors.
package planner

import (
	"time"

	"inbox-janitor-go/internal/model"
)

// Priorities for ranked suggestions; the primary action carries the
// highest value.
const (
	priorityPrimary   = 100
	prioritySecondary = 50
	priorityKeep      = 10
)

// transactionalStaleAfter is the staleness window past which transactional
// mail is suggested for archiving.
const transactionalStaleAfter = 30 * 24 * time.Hour

// Plan maps a category and record to a ranked action list. Protected
// categories (personal, important) always and only get keep, regardless
// of any other signal.
func Plan(category model.Category, record model.EmailRecord, now time.Time) []model.SuggestedAction {
	if category.IsProtected() {
		return []model.SuggestedAction{{
			Type:     model.ActionKeep,
			Reason:   "Protected category, never auto-cleaned",
			Priority: priorityPrimary,
		}}
	}

	switch category {
	case model.CategoryMarketing:
		return withUnsubscribe(record, model.SuggestedAction{
			Type:     model.ActionMoveToTrash,
			Reason:   "Marketing mail, safe to trash",
			Priority: priorityPrimary,
		})

	case model.CategorySpam:
		return []model.SuggestedAction{{
			Type:     model.ActionMoveToTrash,
			Reason:   "Likely spam",
			Priority: priorityPrimary,
		}}

	case model.CategoryNewsletter:
		return withUnsubscribe(record, model.SuggestedAction{
			Type:     model.ActionArchive,
			Reason:   "Newsletter, archive to declutter",
			Priority: priorityPrimary,
		})

	case model.CategorySocial:
		return []model.SuggestedAction{{
			Type:     model.ActionArchive,
			Reason:   "Social network update",
			Priority: priorityPrimary,
		}}

	case model.CategoryNotification:
		actions := []model.SuggestedAction{{
			Type:     model.ActionArchive,
			Reason:   "Automated notification",
			Priority: priorityPrimary,
		}}
		if !record.Read {
			actions = append(actions, model.SuggestedAction{
				Type:     model.ActionMarkRead,
				Reason:   "Clear unread notification",
				Priority: prioritySecondary,
			})
		}
		return actions

	case model.CategoryTransactional:
		if !record.Date.IsZero() && now.Sub(record.Date) > transactionalStaleAfter {
			return []model.SuggestedAction{{
				Type:     model.ActionArchive,
				Reason:   "Old receipt or confirmation",
				Priority: priorityPrimary,
			}}
		}
		return []model.SuggestedAction{{
			Type:     model.ActionKeep,
			Reason:   "Recent transactional mail",
			Priority: priorityKeep,
		}}

	default:
		// Unknown or unrecognized categories default to keep.
		return []model.SuggestedAction{{
			Type:     model.ActionKeep,
			Reason:   "Uncertain classification",
			Priority: priorityKeep,
		}}
	}
}

// withUnsubscribe appends an unsubscribe suggestion below the primary
// action when the message advertises one.
func withUnsubscribe(record model.EmailRecord, primary model.SuggestedAction) []model.SuggestedAction {
	actions := []model.SuggestedAction{primary}
	if record.Header.HasListUnsubscribe || record.Body.HasUnsubscribeText {
		actions = append(actions, model.SuggestedAction{
			Type:     model.ActionUnsubscribe,
			Reason:   "Sender supports unsubscribe",
			Priority: prioritySecondary,
		})
	}
	return actions
}
