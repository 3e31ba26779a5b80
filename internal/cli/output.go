package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/wolfman30/support-escalation-bot/internal/conversation"
	"github.com/wolfman30/support-escalation-bot/internal/history"
)

func printResult(w io.Writer, st styles, res *conversation.Result) {
	fmt.Fprintf(w, "%s %s\n", st.Label.Render("Intent:"), res.Intent)
	fmt.Fprintf(w, "%s %s\n", st.Label.Render("Category:"), res.Category)
	if res.TicketID != "" {
		fmt.Fprintf(w, "%s #%s\n", st.Label.Render("Ticket:"), res.TicketID)
	}
	if res.PreviousIntent != "" {
		fmt.Fprintf(w, "%s %s\n", st.Label.Render("Previous intent:"), res.PreviousIntent)
	}
	fmt.Fprintf(w, "%s %s\n", st.Label.Render("Reply:"), st.Reply.Render(res.Response))

	switch {
	case res.Escalated && res.NotificationDelivered:
		fmt.Fprintln(w, st.Success.Render("ESCALATED: operators notified"))
	case res.Escalated:
		fmt.Fprintln(w, st.Warning.Render("ESCALATED: notification failed, see logs"))
	case res.EscalationSuppressed:
		fmt.Fprintln(w, st.Muted.Render("escalation suppressed (already escalated recently)"))
	}
}

func printHistory(w io.Writer, st styles, username string, records []history.ConversationRecord) {
	if len(records) == 0 {
		fmt.Fprintf(w, "%s\n", st.Warning.Render("No history found for @"+username))
		return
	}
	fmt.Fprintln(w, st.Title.Render(fmt.Sprintf("Conversation history for @%s", username)))
	for i, rec := range records {
		fmt.Fprintf(w, "%s %s %s\n",
			st.Muted.Render(fmt.Sprintf("%d.", i+1)),
			st.Label.Render(rec.CreatedAt.Local().Format(time.DateTime)),
			st.Muted.Render("["+rec.Channel+"]"),
		)
		fmt.Fprintf(w, "   %s %q\n", st.Label.Render("User:"), rec.Message)
		fmt.Fprintf(w, "   %s %s\n", st.Label.Render("Intent:"), rec.Intent)
		fmt.Fprintf(w, "   %s %s\n", st.Label.Render("Bot:"), rec.Response)
		if rec.Escalated {
			fmt.Fprintf(w, "   %s\n", st.Success.Render("escalated #"+rec.TicketID))
		}
	}
}

func printState(w io.Writer, st styles, state *history.UserState) {
	ticket := state.LastTicketID
	if ticket == "" {
		ticket = "N/A"
	}
	fmt.Fprintln(w, st.Title.Render("Stats for @"+state.Username))
	fmt.Fprintf(w, "  %s %s\n", st.Label.Render("Last intent:"), state.LastIntent)
	fmt.Fprintf(w, "  %s %s\n", st.Label.Render("Ticket number:"), ticket)
	fmt.Fprintf(w, "  %s %s\n", st.Label.Render("Last interaction:"), state.LastInteractionAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "  %s %d\n", st.Label.Render("Escalations:"), state.EscalationCount)
}

func rule(st styles) string {
	return st.Rule.Render(strings.Repeat("-", 50))
}
