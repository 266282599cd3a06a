// Package render builds the interactive cards sent to the chat surface: the
// per-group onboarding notification, the daily digest and post-action result cards.
package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"onboard/internal/notify/action"
	"onboard/internal/notify/card"
	"onboard/internal/roster/models"
)

const dateLayout = "2006-01-02"

// Renderer is stateless apart from its configuration.
type Renderer struct {
	loc         *time.Location
	emailDomain string
}

type Option func(r *Renderer)

// WithEmailDomain makes proposed handles render as full addresses.
func WithEmailDomain(domain string) Option {
	return func(r *Renderer) {
		r.emailDomain = strings.TrimPrefix(domain, "@")
	}
}

// New constructs a Renderer evaluating dates in loc (UTC when nil).
func New(loc *time.Location, opts ...Option) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	r := &Renderer{loc: loc}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Section is one target-date group of a notification.
type Section struct {
	Date    time.Time
	Tier    Tier
	Records []models.Enriched
}

// Sections groups records by target date (earliest first) and labels each group
// with its urgency tier relative to now.
func (r *Renderer) Sections(records []models.Enriched, now time.Time) []Section {
	byDate := make(map[string]*Section)
	var keys []string
	for _, rec := range records {
		key := rec.TargetDate.In(r.loc).Format(dateLayout)
		sec, ok := byDate[key]
		if !ok {
			sec = &Section{Date: rec.TargetDate, Tier: TierFor(rec.TargetDate, now, r.loc)}
			byDate[key] = sec
			keys = append(keys, key)
		}
		sec.Records = append(sec.Records, rec)
	}
	sort.Strings(keys)

	out := make([]Section, 0, len(keys))
	for _, k := range keys {
		out = append(out, *byDate[k])
	}
	return out
}

// Notification renders the onboarding card for one group.
func (r *Renderer) Notification(group string, records []models.Enriched, now time.Time) card.Card {
	c := card.Card{Header: card.Header{
		Title: fmt.Sprintf("Onboarding · %s (%d pending)", displayGroup(group), len(records)),
		Color: card.ColorBlue,
	}}
	if len(records) == 0 {
		c.Add(card.Markdown("Nothing pending."))
		return c
	}

	// sections are date-ordered, so the first one carries the most urgent tier
	sections := r.Sections(records, now)
	c.Header.Color = sections[0].Tier.color()

	var emailTargets []action.EmailTarget
	var rideTargets []action.RideTarget
	for _, rec := range records {
		if t, ok := emailTarget(rec); ok {
			emailTargets = append(emailTargets, t)
		}
		if t, ok := rideTarget(rec); ok {
			rideTargets = append(rideTargets, t)
		}
	}

	c.Add(card.Markdown(fmt.Sprintf("**%d** hires pending in **%s**: %d need a work email, %d need a ride account.",
		len(records), displayGroup(group), len(emailTargets), len(rideTargets))))

	for _, sec := range sections {
		c.Add(card.Divider())
		c.Add(card.Markdown(fmt.Sprintf("**%s · %s**", sec.Date.In(r.loc).Format(dateLayout), sec.Tier.Label())))
		c.Add(card.TableOf(r.recordTable(sec.Records)))
		if buttons := recordButtons(sec.Records); len(buttons) > 0 {
			c.Add(card.Actions(buttons...))
		}
	}

	c.Add(card.Divider())
	c.Add(card.Actions(aggregateButtons(group, emailTargets, rideTargets)...))
	return c
}

// Digest renders the full backlog grouped by urgency tier, most urgent first.
func (r *Renderer) Digest(records []models.Enriched, now time.Time) card.Card {
	c := card.Card{Header: card.Header{
		Title: fmt.Sprintf("Daily onboarding digest · %s (%d pending)", now.In(r.loc).Format(dateLayout), len(records)),
		Color: card.ColorGrey,
	}}
	if len(records) == 0 {
		c.Add(card.Markdown("No pending hires."))
		return c
	}

	buckets := make(map[Tier][]models.Enriched)
	for _, rec := range records {
		t := TierFor(rec.TargetDate, now, r.loc)
		buckets[t] = append(buckets[t], rec)
	}

	first := true
	for _, tier := range Tiers {
		recs := buckets[tier]
		if len(recs) == 0 {
			continue
		}
		if first {
			c.Header.Color = tier.color()
			first = false
		}
		sort.SliceStable(recs, func(i, j int) bool {
			if !recs[i].TargetDate.Equal(recs[j].TargetDate) {
				return recs[i].TargetDate.Before(recs[j].TargetDate)
			}
			return recs[i].Name < recs[j].Name
		})

		rows := make([][]string, 0, len(recs))
		for _, rec := range recs {
			rows = append(rows, []string{
				rec.TargetDate.In(r.loc).Format(dateLayout),
				rec.Name,
				rec.GroupKey(),
				string(rec.Category),
				yesNo(rec.HasEmail),
			})
		}
		c.Add(card.Markdown(fmt.Sprintf("**%s** (%d)", tier.Label(), len(recs))))
		c.Add(card.TableOf(card.Table{
			Title:   tier.Label(),
			Columns: []string{"Date", "Name", "Location", "Category", "Email"},
			Rows:    rows,
		}))
	}
	return c
}

// Outcome is the result of one provisioning attempt shown on a result card.
type Outcome struct {
	RecordID string
	Name     string
	Detail   string
	OK       bool
}

// Result renders the card pushed after an action completes: a summary line and
// separate tables for successes and failures.
func (r *Renderer) Result(title string, outcomes []Outcome) card.Card {
	var ok, failed [][]string
	for _, o := range outcomes {
		row := []string{o.Name, o.Detail}
		if o.OK {
			ok = append(ok, row)
		} else {
			failed = append(failed, row)
		}
	}

	color := card.ColorGreen
	switch {
	case len(failed) > 0 && len(ok) == 0:
		color = card.ColorRed
	case len(failed) > 0:
		color = card.ColorOrange
	}

	c := card.Card{Header: card.Header{Title: title, Color: color}}
	c.Add(card.Markdown(fmt.Sprintf("%d succeeded, %d failed (%d total)", len(ok), len(failed), len(outcomes))))
	c.Add(card.TableOf(card.Table{Title: "Succeeded", Columns: []string{"Name", "Result"}, Rows: ok}))
	c.Add(card.TableOf(card.Table{Title: "Failed", Columns: []string{"Name", "Reason"}, Rows: failed}))
	return c
}

func (r *Renderer) recordTable(records []models.Enriched) card.Table {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		email := "✓"
		if !rec.HasEmail {
			email = r.address(rec.ProposedHandle)
		}
		rule := "-"
		if rec.Rule != nil {
			rule = rec.Rule.Name
		}
		rows = append(rows, []string{rec.Name, string(rec.Category), MaskPhone(rec.Phone), email, rule})
	}
	return card.Table{
		Columns: []string{"Name", "Category", "Phone", "Email", "Ride rule"},
		Rows:    rows,
	}
}

func (r *Renderer) address(handle string) string {
	switch {
	case handle == "":
		return "-"
	case r.emailDomain == "":
		return handle
	default:
		return handle + "@" + r.emailDomain
	}
}

func recordButtons(records []models.Enriched) []card.Button {
	var buttons []card.Button
	for _, rec := range records {
		if t, ok := emailTarget(rec); ok {
			buttons = append(buttons, card.Button{
				Text:  "Email · " + rec.Name,
				Style: "primary",
				Value: action.MustEncode(action.ProvisionEmail{EmailTarget: t}),
			})
		}
		if t, ok := rideTarget(rec); ok {
			buttons = append(buttons, card.Button{
				Text:  "Ride · " + rec.Name,
				Value: action.MustEncode(action.ProvisionRide{RideTarget: t}),
			})
		}
	}
	return buttons
}

func aggregateButtons(group string, emails []action.EmailTarget, rides []action.RideTarget) []card.Button {
	var buttons []card.Button
	if len(emails) > 0 {
		buttons = append(buttons, card.Button{
			Text:  fmt.Sprintf("Create all emails (%d)", len(emails)),
			Style: "primary",
			Value: action.MustEncode(action.BatchEmail{Items: emails}),
			Confirm: &card.Confirm{
				Title: "Create work emails",
				Text:  fmt.Sprintf("Create %d work email accounts now?", len(emails)),
			},
		})
	}
	if len(rides) > 0 {
		buttons = append(buttons, card.Button{
			Text:  fmt.Sprintf("Open all ride accounts (%d)", len(rides)),
			Value: action.MustEncode(action.BatchRide{Items: rides}),
			Confirm: &card.Confirm{
				Title: "Open ride accounts",
				Text:  fmt.Sprintf("Open %d ride-service accounts now?", len(rides)),
			},
		})
	}
	buttons = append(buttons, card.Button{
		Text:  "Refresh",
		Value: action.MustEncode(action.Refresh{Group: group}),
	})
	return buttons
}

func emailTarget(rec models.Enriched) (action.EmailTarget, bool) {
	if rec.HasEmail {
		return action.EmailTarget{}, false
	}
	return action.EmailTarget{RecordID: rec.ID, Name: rec.Name}, true
}

func rideTarget(rec models.Enriched) (action.RideTarget, bool) {
	if rec.Rule == nil || rec.Phone == "" {
		return action.RideTarget{}, false
	}
	return action.RideTarget{
		RecordID: rec.ID,
		Name:     rec.Name,
		Phone:    rec.Phone,
		RuleID:   rec.Rule.ID,
		Location: rec.GroupKey(),
	}, true
}

// MaskPhone keeps the first three and last four digits.
func MaskPhone(phone string) string {
	runes := []rune(phone)
	if len(runes) <= 7 {
		return phone
	}
	return string(runes[:3]) + strings.Repeat("*", len(runes)-7) + string(runes[len(runes)-4:])
}

func displayGroup(group string) string {
	if group == "" {
		return "unassigned"
	}
	return group
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
