package web

import (
	"encoding/json"
)

const keyFlash = "flash"

// Flash is a one-shot notification shown on the next rendered page.
type Flash struct {
	Kind    string `json:"kind"` // "success" or "error"
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Notifier implements form.Notifier by queueing a flash in the session
// cookie. A flash not shown by the current response survives a redirect.
type Notifier struct {
	store *CookieStore
}

func (n *Notifier) Success(title, message string, _ any) {
	n.put(Flash{Kind: "success", Title: title, Message: message})
}

func (n *Notifier) Error(title, message string) {
	n.put(Flash{Kind: "error", Title: title, Message: message})
}

func (n *Notifier) put(f Flash) {
	raw, err := json.Marshal(f)
	if err != nil {
		return
	}
	n.store.Set(keyFlash, string(raw))
}

// Take returns and forgets the queued flash.
func (n *Notifier) Take() *Flash {
	raw, ok := n.store.Get(keyFlash)
	if !ok {
		return nil
	}
	n.store.Delete(keyFlash)
	var f Flash
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil
	}
	return &f
}
