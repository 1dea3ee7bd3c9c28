package gateway

import "net/http"

// DefaultRoutes returns the route table of the ambulance-booking frontend.
func DefaultRoutes() []Route {
	return []Route{
		// Accounts
		{
			Name: "auth_login", Pattern: "/api/auth/login", Service: ServiceAuth,
			Methods: map[string]Method{
				http.MethodPost: {Backend: "/accounts/login/"},
			},
		},
		{
			Name: "auth_admin_login", Pattern: "/api/auth/admin-login", Service: ServiceAuth,
			Methods: map[string]Method{
				http.MethodPost: {Backend: "/accounts/login/", Filter: AdminOnly},
			},
		},
		{
			Name: "auth_logout", Pattern: "/api/auth/logout", Service: ServiceAuth,
			Methods: map[string]Method{
				http.MethodPost: {Backend: "/accounts/logout/", Auth: true},
			},
		},
		{
			Name: "auth_password_reset", Pattern: "/api/auth/password-reset", Service: ServiceAuth,
			Methods: map[string]Method{
				http.MethodPost: {Backend: "/accounts/password-reset/"},
			},
		},
		{
			Name: "auth_password_reset_confirm", Pattern: "/api/auth/password-reset/confirm", Service: ServiceAuth,
			Methods: map[string]Method{
				http.MethodPost: {Backend: "/accounts/password-reset/confirm/"},
			},
		},
		{
			Name: "users", Pattern: "/api/users", Service: ServiceUser,
			Methods: map[string]Method{
				http.MethodGet:  {Backend: "/accounts/users/", Auth: true},
				http.MethodPost: {Backend: "/accounts/users/", Auth: true},
			},
		},
		{
			Name: "users_item", Pattern: "/api/users/{id}", Service: ServiceUser,
			Methods: map[string]Method{
				http.MethodGet:    {Backend: "/accounts/users/{id}/", Auth: true},
				http.MethodPut:    {Backend: "/accounts/users/{id}/", Auth: true},
				http.MethodPatch:  {Backend: "/accounts/users/{id}/", Auth: true},
				http.MethodDelete: {Backend: "/accounts/users/{id}/", Auth: true},
			},
		},
		{
			Name: "statistics", Pattern: "/api/statistics", Service: ServiceStatistics,
			Methods: map[string]Method{
				http.MethodGet: {Backend: "/accounts/statistics/", Auth: true},
			},
		},

		// Bookings
		{
			Name: "bookings", Pattern: "/api/bookings", Service: ServiceBooking,
			Methods: map[string]Method{
				http.MethodGet: {Backend: "/bookings/", Auth: true},
			},
		},
		{
			Name: "bookings_instant", Pattern: "/api/bookings/instant", Service: ServiceBooking,
			Methods: map[string]Method{
				http.MethodGet:  {Backend: "/bookings/instant/", Auth: true},
				http.MethodPost: {Backend: "/bookings/instant/", Auth: true},
			},
		},
		{
			Name: "bookings_scheduled", Pattern: "/api/bookings/scheduled", Service: ServiceBooking,
			Methods: map[string]Method{
				http.MethodGet:  {Backend: "/bookings/", Auth: true, Filter: ScheduledOnly},
				http.MethodPost: {Backend: "/bookings/scheduled/", Auth: true},
			},
		},
		{
			Name: "bookings_new_requests", Pattern: "/api/bookings/new-requests", Service: ServiceBooking,
			Methods: map[string]Method{
				http.MethodGet: {Backend: "/bookings/new-requests/", Auth: true},
			},
		},
		{
			Name: "bookings_item", Pattern: "/api/bookings/{id}", Service: ServiceBooking,
			Methods: map[string]Method{
				http.MethodGet:    {Backend: "/bookings/{id}/", Auth: true},
				http.MethodPatch:  {Backend: "/bookings/{id}/", Auth: true},
				http.MethodDelete: {Backend: "/bookings/{id}/", Auth: true},
			},
		},

		// Bids
		{
			Name: "bids", Pattern: "/api/bids", Service: ServiceBid,
			Methods: map[string]Method{
				http.MethodGet:  {Backend: "/bids/", Auth: true},
				http.MethodPost: {Backend: "/bids/", Auth: true},
			},
		},
		{
			Name: "bids_item", Pattern: "/api/bids/{id}", Service: ServiceBid,
			Methods: map[string]Method{
				http.MethodGet:    {Backend: "/bids/{id}/", Auth: true},
				http.MethodPut:    {Backend: "/bids/{id}/", Auth: true},
				http.MethodPatch:  {Backend: "/bids/{id}/", Auth: true},
				http.MethodDelete: {Backend: "/bids/{id}/", Auth: true},
			},
		},
		{
			Name: "bids_approve", Pattern: "/api/bids/{id}/approve", Service: ServiceBid,
			Methods: map[string]Method{
				http.MethodPost: {Backend: "/bids/{id}/approve/", Auth: true},
			},
		},

		// Directory
		{
			Name: "hospitals", Pattern: "/api/hospitals", Service: ServiceHospital,
			Methods: map[string]Method{
				http.MethodGet:  {Backend: "/hospitals/", Auth: true},
				http.MethodPost: {Backend: "/hospitals/", Auth: true},
			},
		},
		{
			Name: "hospitals_item", Pattern: "/api/hospitals/{id}", Service: ServiceHospital,
			Methods: map[string]Method{
				http.MethodGet:    {Backend: "/hospitals/{id}/", Auth: true},
				http.MethodPut:    {Backend: "/hospitals/{id}/", Auth: true},
				http.MethodDelete: {Backend: "/hospitals/{id}/", Auth: true},
			},
		},
		{
			Name: "doctors", Pattern: "/api/doctors", Service: ServiceDoctor,
			Methods: map[string]Method{
				http.MethodGet:  {Backend: "/doctors/", Auth: true},
				http.MethodPost: {Backend: "/doctors/", Auth: true},
			},
		},
		{
			Name: "doctors_item", Pattern: "/api/doctors/{id}", Service: ServiceDoctor,
			Methods: map[string]Method{
				http.MethodGet:    {Backend: "/doctors/{id}/", Auth: true},
				http.MethodPut:    {Backend: "/doctors/{id}/", Auth: true},
				http.MethodDelete: {Backend: "/doctors/{id}/", Auth: true},
			},
		},
	}
}
