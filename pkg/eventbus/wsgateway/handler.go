// 文件: pkg/eventbus/wsgateway/handler.go
package wsgateway

import (
	"net/http"
	"strconv"

	"github.com/itrader/agent/pkg/eventbus"
)

// Handler returns an http.HandlerFunc that upgrades the request and
// scopes the new Client to the room named by the "user" and/or
// "account" query parameters (e.g. /ws?account=42).
func Handler(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rooms []eventbus.Room
		if user := r.URL.Query().Get("user"); user != "" {
			rooms = append(rooms, eventbus.Room{User: user})
		}
		if acctStr := r.URL.Query().Get("account"); acctStr != "" {
			if acctID, err := strconv.ParseInt(acctStr, 10, 64); err == nil {
				rooms = append(rooms, eventbus.Room{Account: acctID})
			}
		}
		if err := h.Upgrade(w, r, rooms); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
}
