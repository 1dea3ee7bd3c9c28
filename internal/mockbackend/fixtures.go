package mockbackend

// Fixture logins. The admin account is staff; the dispatcher is not.
const (
	AdminUsername      = "admin"
	AdminPassword      = "admin123"
	DispatcherUsername = "dispatcher"
	DispatcherPassword = "dispatch123"
)

// Fixture record ids, stable so tests and manual runs can address them.
const (
	adminID           = "u-admin"
	dispatcherID      = "u-dispatcher"
	instantBookingID  = "b-instant-1"
	scheduledBooking1 = "b-scheduled-1"
	scheduledBooking2 = "b-scheduled-2"
	pendingBidID      = "bid-1"
	hospitalID        = "h-1"
	doctorID          = "d-1"
)

type account struct {
	password string
	userID   string
}

func (s *Server) seed() {
	s.users.create(Record{
		"id": adminID, "username": AdminUsername, "email": "admin@ambu.local",
		"is_staff": true, "is_superuser": true,
	})
	s.users.create(Record{
		"id": dispatcherID, "username": DispatcherUsername, "email": "dispatch@ambu.local",
		"is_staff": false, "is_superuser": false,
	})
	s.accounts[AdminUsername] = account{password: AdminPassword, userID: adminID}
	s.accounts[DispatcherUsername] = account{password: DispatcherPassword, userID: dispatcherID}

	s.hospitals.create(Record{"id": hospitalID, "name": "St Mary", "city": "Nairobi", "beds": 120.0})
	s.hospitals.create(Record{"name": "Aga Khan", "city": "Mombasa", "beds": 80.0})
	s.doctors.create(Record{"id": doctorID, "name": "Dr. Wanjiru", "specialty": "emergency", "hospital": hospitalID})

	s.bookings.create(Record{
		"id": instantBookingID, "is_instant": true, "status": statusPending,
		"pickup": "Kilimani", "hospital": hospitalID,
	})
	s.bookings.create(Record{
		"id": scheduledBooking1, "is_instant": false, "status": statusPending,
		"pickup": "Westlands", "hospital": hospitalID, "scheduled_for": "2026-11-02T09:00:00Z",
	})
	s.bookings.create(Record{
		"id": scheduledBooking2, "is_instant": false, "status": statusAccepted,
		"pickup": "Karen", "hospital": hospitalID, "scheduled_for": "2026-11-03T14:30:00Z",
	})

	s.bids.create(Record{
		"id": pendingBidID, "booking": scheduledBooking1, "amount": 4500.0, "status": statusPending,
	})
}
