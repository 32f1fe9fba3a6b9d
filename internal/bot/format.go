package bot

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"

	"taska/internal/model"
	"taska/internal/service"
)

const (
	iconDefault   = "🟢"
	iconDue       = "⏳"
	iconOverdue   = "⚠️"
	iconRecurring = "♻️"
	iconRotation  = "🔁"
	iconLocation  = "📍"
	iconDone      = "✅"
)

// shortIDLen is how much of a task id the chat shows and accepts.
const shortIDLen = 8

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

func formatTask(task model.Task, now time.Time) string {
	var b strings.Builder
	icon := iconDefault
	switch {
	case task.Completed:
		icon = iconDone
	case task.DueDate != nil:
		d := task.DueDate.In(now.Location())
		if now.After(d) {
			icon = iconOverdue
		} else if d.Sub(now) <= 48*time.Hour {
			icon = iconDue
		}
	}
	b.WriteString(fmt.Sprintf("%s <b>#%s</b> %s\n", icon, shortID(task.ID), escape(normalizeTitle(task.Title))))
	if task.DueDate != nil {
		d := task.DueDate.In(now.Location())
		if !task.Completed && now.After(d) {
			b.WriteString(fmt.Sprintf("   ⏰ Due: %s · <b>overdue</b>\n", d.Format("2006-01-02")))
		} else {
			b.WriteString(fmt.Sprintf("   ⏰ Due: %s\n", d.Format("2006-01-02")))
		}
	}
	if task.IsRecurring() {
		b.WriteString(fmt.Sprintf("   %s %s\n", iconRecurring, describeRecurrence(*task.Recurrence)))
	}
	if task.Rotation != nil && task.Rotation.Enabled {
		b.WriteString(fmt.Sprintf("   %s Rotates between %d members\n", iconRotation, len(task.Rotation.MemberIDs)))
	}
	if names := task.AssigneeNames(); len(names) > 0 {
		b.WriteString(fmt.Sprintf("   👤 %s\n", escape(strings.Join(names, ", "))))
	}
	if task.Description != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(task.Description)))
	}
	b.WriteByte('\n')
	return b.String()
}

func describeRecurrence(p model.RecurrencePattern) string {
	unit := map[model.RecurrenceType]string{
		model.RecurrenceDaily:   "day",
		model.RecurrenceWeekly:  "week",
		model.RecurrenceMonthly: "month",
		model.RecurrenceYearly:  "year",
	}[p.Type]
	if unit == "" {
		return "Does not repeat"
	}
	if p.Interval <= 1 {
		return "Every " + unit
	}
	return fmt.Sprintf("Every %d %ss", p.Interval, unit)
}

func formatNotification(n model.Notification) string {
	var b strings.Builder
	switch n.Kind {
	case model.NotificationNearby:
		b.WriteString(fmt.Sprintf("%s <b>You are near %s</b>\n", iconLocation, escape(n.Location)))
	default:
		b.WriteString(fmt.Sprintf("%s <b>New occurrence</b>\n", iconRecurring))
	}
	b.WriteString(fmt.Sprintf("#%s %s\n", shortID(n.TaskID), escape(normalizeTitle(n.Title))))
	if n.DueDate != nil {
		b.WriteString(fmt.Sprintf("⏰ Due: %s\n", n.DueDate.Format("2006-01-02")))
	}
	if len(n.AssigneeNames) > 0 {
		b.WriteString(fmt.Sprintf("👤 %s\n", escape(strings.Join(n.AssigneeNames, ", "))))
	}
	return strings.TrimSpace(b.String())
}

func formatTaskList(title string, groups []service.LocationGroup, now time.Time) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	for _, g := range groups {
		b.WriteString(fmt.Sprintf("%s <b>%s</b>\n", iconLocation, escape(g.Name)))
		for _, task := range g.Tasks {
			b.WriteString(formatTask(task, now))
		}
	}
	return strings.TrimSpace(b.String())
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(s)
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
