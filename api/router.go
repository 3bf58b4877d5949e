package api

import (
	"net/http"
	"time"

	"inkwell/captcha"
	"inkwell/config"
	"inkwell/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

var (
	conf     *config.Config
	uploads  storage.ObjectStorage
	verifier *captcha.Verifier
)

// NewRouter wires every route. store may be nil, which disables image
// uploads.
func NewRouter(cfg *config.Config, store storage.ObjectStorage) *chi.Mux {
	conf = cfg
	uploads = store
	verifier = captcha.New(cfg.CaptchaSecret, cfg.CaptchaVerifyURL)

	r := chi.NewRouter()

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	})

	r.Use(corsMiddleware.Handler)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(httprate.LimitByIP(300, time.Minute)) // general rate limiter for all routes
	r.Use(middleware.Recoverer)
	r.Use(authenticate)

	// stricter limit for the endpoints bots hammer
	tightLimit := httprate.LimitByIP(10, time.Minute)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(tightLimit).Post("/register", registerUser)
			r.With(tightLimit).Post("/login", loginUser)
			r.With(requireAuth).Get("/me", getCurrentUser)
			r.With(requireAuth).Put("/me", updateCurrentUser)
			r.With(requireAdmin).Get("/users", listUsers)
			r.With(requireAdmin).Put("/users/{userID:[0-9]+}/admin", setUserAdmin)
		})

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", listPosts)
			r.Get("/{postID:[0-9]+}", getPost)
			r.Get("/slug/{slug}", getPostBySlug)
			r.With(requireAdmin).Post("/", createPost)
			r.With(requireAdmin).Post("/import", importPosts)
			r.With(requireAdmin).Put("/{postID:[0-9]+}", updatePost)
			r.With(requireAdmin).Delete("/{postID:[0-9]+}", deletePost)
		})

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", listTags)
			r.Get("/{tagID:[0-9]+}", getTag)
			r.Get("/slug/{slug}", getTagBySlug)
			r.With(requireAdmin).Post("/", createTag)
			r.With(requireAdmin).Put("/{tagID:[0-9]+}", updateTag)
			r.With(requireAdmin).Delete("/{tagID:[0-9]+}", deleteTag)
		})

		r.Route("/newsletter", func(r chi.Router) {
			r.With(tightLimit).Post("/subscribe", subscribeNewsletter)
			r.Get("/unsubscribe", unsubscribePage)
			r.Post("/unsubscribe", unsubscribeNewsletter)
			r.With(requireAdmin).Get("/subscribers", listSubscribers)
			r.With(requireAdmin).Delete("/subscribers/{subscriberID:[0-9]+}", deleteSubscriber)
			r.With(requireAdmin).Get("/export", exportSubscribers)
		})

		r.Route("/documentation", func(r chi.Router) {
			r.Get("/products", listDocProducts)
			r.Get("/products/{productSlug:[a-z0-9-]+}", getDocProduct)
			r.Get("/products/{productSlug:[a-z0-9-]+}/{sectionSlug:[a-z0-9-]+}/{pageSlug:[a-z0-9-]+}", getDocPage)

			r.With(requireAdmin).Post("/products", createDocProduct)
			r.With(requireAdmin).Put("/products/{productID:[0-9]+}", updateDocProduct)
			r.With(requireAdmin).Delete("/products/{productID:[0-9]+}", deleteDocProduct)

			r.With(requireAdmin).Post("/products/{productID:[0-9]+}/sections", createDocSection)
			r.With(requireAdmin).Put("/products/{productID:[0-9]+}/sections/reorder", reorderDocSections)
			r.With(requireAdmin).Put("/sections/{sectionID:[0-9]+}", updateDocSection)
			r.With(requireAdmin).Delete("/sections/{sectionID:[0-9]+}", deleteDocSection)

			r.With(requireAdmin).Post("/sections/{sectionID:[0-9]+}/pages", createDocPage)
			r.With(requireAdmin).Put("/sections/{sectionID:[0-9]+}/pages/reorder", reorderDocPages)
			r.With(requireAdmin).Put("/pages/{pageID:[0-9]+}", updateDocPage)
			r.With(requireAdmin).Delete("/pages/{pageID:[0-9]+}", deleteDocPage)
		})

		r.Route("/upload", func(r chi.Router) {
			r.With(requireAdmin).Post("/image", uploadImage)
		})
	})

	return r
}
