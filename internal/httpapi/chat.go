package httpapi

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"stonklytics/internal/domain"
)

const disclaimer = "This is educational information, not financial advice."

var tickerPattern = regexp.MustCompile(`\$?\b[A-Z]{1,5}\b`)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatBody
	if err := s.decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, chatResponse{
		Message: reply(body.Message, body.History, body.Watchlist),
		Role:    domain.RoleModel,
	})
}

// reply produces a short conversational answer: it acknowledges the
// question, relates it to the watchlist when one is shared, and asks one
// follow-up question.
func reply(message string, history []domain.ChatTurn, wl *domain.WatchlistContext) string {
	var b strings.Builder

	if len(history) > 0 {
		b.WriteString("Building on what we discussed, ")
	} else {
		b.WriteString("Good question! ")
	}

	var held, mentioned []string
	inList := make(map[string]bool)
	if wl != nil {
		for _, st := range wl.Stocks {
			if t := domain.NormalizeTicker(st.Ticker); t != "" {
				held = append(held, t)
				inList[t] = true
			}
		}
	}
	for _, m := range tickerPattern.FindAllString(message, -1) {
		t := strings.TrimPrefix(m, "$")
		if inList[t] || strings.HasPrefix(m, "$") {
			mentioned = appendUnique(mentioned, t)
		}
	}

	switch {
	case len(mentioned) > 0:
		fmt.Fprintf(&b, "let's look at %s. ", strings.Join(mentioned, " and "))
		b.WriteString("Are you more interested in recent price moves or in the company's fundamentals?")
	case len(held) > 0:
		name := wl.Name
		if name == "" {
			name = "My Watchlist"
		}
		fmt.Fprintf(&b, "I can see your watchlist %q with %s. ", name, strings.Join(held, ", "))
		b.WriteString("Which of these would you like to start with?")
	default:
		fmt.Fprintf(&b, "You asked: %q. ", truncate(message, 120))
		b.WriteString("To point you in the right direction, are you investing for the long term or looking at a shorter horizon?")
	}

	b.WriteString(" ")
	b.WriteString(disclaimer)
	return b.String()
}

func appendUnique(list []string, s string) []string {
	for _, x := range list {
		if x == s {
			return list
		}
	}
	return append(list, s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
