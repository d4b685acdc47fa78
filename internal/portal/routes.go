package portal

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/me/tutordesk/internal/guard"
)

func (p *Portal) routes() {
	r := p.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(p.logger))
	r.Use(p.browserMiddleware)

	// Root and unknown paths only ever redirect.
	r.Get("/", p.HandleRoot)
	r.NotFound(p.HandleRoot)

	// Public views; a signed-in browser is sent to its landing view.
	r.With(p.requireRoute(guard.RouteLogin)).Get("/login", p.HandleLogin)
	r.Post("/login", p.HandleLoginPost)
	r.With(p.requireRoute(guard.RouteRegister)).Get("/register", p.HandleRegister)
	r.Post("/register", p.HandleRegisterPost)
	r.Post("/logout", p.HandleLogout)

	r.Route("/student", func(r chi.Router) {
		r.Use(p.requireRoute(guard.RouteStudentDashboard))
		r.Get("/dashboard", p.HandleStudentDashboard)
		r.Post("/pay", p.HandlePay)
		r.Post("/attendance", p.HandleSelfAttendance)
		r.Post("/profile", p.HandleProfile)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(p.requireRoute(guard.RouteAdminDashboard))
		r.Get("/dashboard", p.HandleAdminDashboard)
		r.Get("/students/{id}", p.HandleStudentHistory)
		r.Post("/attendance", p.HandleMarkAttendance)
		r.Post("/grade", p.HandleSetGrade)
		r.Post("/payments/add", p.HandleAddPayment)
		r.Post("/payments/{id}/confirm", p.HandleConfirmPayment)
		r.Post("/payments/{id}", p.HandleUpdatePayment)
		r.Post("/users/{id}/delete", p.HandleDeleteUser)
	})
}
