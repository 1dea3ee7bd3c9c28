package mockbackend

import (
	"net/http"
	"strings"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	rec, ok := readRecord(w, r)
	if !ok {
		return
	}
	username, _ := rec["username"].(string)
	password, _ := rec["password"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, found := s.accounts[username]
	if !found || acct.password != password {
		writeJSON(w, http.StatusBadRequest, map[string][]string{
			"non_field_errors": {"Unable to log in with provided credentials."},
		})
		return
	}
	user, _ := s.users.get(acct.userID)
	writeJSON(w, http.StatusOK, Record{"token": s.issueToken(acct.userID), "user": user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	if token != s.fixedToken {
		delete(s.tokens, token)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, detail("Successfully logged out."))
}

func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	rec, ok := readRecord(w, r)
	if !ok {
		return
	}
	if email, _ := rec["email"].(string); email == "" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"email": {"This field is required."}})
		return
	}
	writeJSON(w, http.StatusOK, detail("Password reset e-mail has been sent."))
}

func (s *Server) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	rec, ok := readRecord(w, r)
	if !ok {
		return
	}
	missing := map[string][]string{}
	for _, field := range []string{"uid", "token", "new_password"} {
		if v, _ := rec[field].(string); v == "" {
			missing[field] = []string{"This field is required."}
		}
	}
	if len(missing) > 0 {
		writeJSON(w, http.StatusBadRequest, missing)
		return
	}
	writeJSON(w, http.StatusOK, detail("Password has been reset with the new password."))
}

func (s *Server) handleStatistics(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	writeJSON(w, http.StatusOK, Record{
		"total_users":        s.users.count(nil),
		"total_bookings":     s.bookings.count(nil),
		"instant_bookings":   s.bookings.count(isInstant),
		"scheduled_bookings": s.bookings.count(isScheduled),
		"pending_bookings":   s.bookings.count(isPending),
		"total_bids":         s.bids.count(nil),
		"hospitals":          s.hospitals.count(nil),
		"doctors":            s.doctors.count(nil),
	})
}

func isInstant(r Record) bool   { return r["is_instant"] == true }
func isScheduled(r Record) bool { return r["is_instant"] == false }
func isPending(r Record) bool   { return r["status"] == statusPending }

func (s *Server) listBookings(keep func(Record) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		writeJSON(w, http.StatusOK, s.bookings.list(keep))
	}
}

func (s *Server) createBooking(instant bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := readRecord(w, r)
		if !ok {
			return
		}
		if pickup, _ := rec["pickup"].(string); pickup == "" {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"pickup": {"This field is required."}})
			return
		}
		if !instant {
			if when, _ := rec["scheduled_for"].(string); when == "" {
				writeJSON(w, http.StatusBadRequest, map[string][]string{"scheduled_for": {"This field is required."}})
				return
			}
		}
		delete(rec, "id")
		rec["is_instant"] = instant
		rec["status"] = statusPending

		s.mu.Lock()
		defer s.mu.Unlock()
		writeJSON(w, http.StatusCreated, s.bookings.create(rec))
	}
}

func (s *Server) handleApproveBid(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	bid, ok := s.bids.get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, detail("Not found."))
		return
	}
	if bid["status"] == statusApproved {
		writeJSON(w, http.StatusBadRequest, detail("Bid already approved."))
		return
	}
	bid, _ = s.bids.update(id, Record{"status": statusApproved}, false)
	if booking, _ := bid["booking"].(string); booking != "" {
		s.bookings.update(booking, Record{"status": statusAccepted}, false)
	}
	writeJSON(w, http.StatusOK, bid)
}

func (s *Server) listAll(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		writeJSON(w, http.StatusOK, c.list(nil))
	}
}

func (s *Server) createOne(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := readRecord(w, r)
		if !ok {
			return
		}
		delete(rec, "id")
		s.mu.Lock()
		defer s.mu.Unlock()
		writeJSON(w, http.StatusCreated, c.create(rec))
	}
}

func (s *Server) getOne(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		rec, ok := c.get(r.PathValue("id"))
		if !ok {
			writeJSON(w, http.StatusNotFound, detail("Not found."))
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) updateOne(c *collection, replace bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patch, ok := readRecord(w, r)
		if !ok {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		rec, found := c.update(r.PathValue("id"), patch, replace)
		if !found {
			writeJSON(w, http.StatusNotFound, detail("Not found."))
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) deleteOne(c *collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !c.delete(r.PathValue("id")) {
			writeJSON(w, http.StatusNotFound, detail("Not found."))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
