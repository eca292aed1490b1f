package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"primedetail.kg/detail-web/internal/carousel"
	"primedetail.kg/detail-web/internal/handlers"
	mw "primedetail.kg/detail-web/internal/middleware"
	"primedetail.kg/detail-web/internal/sessionstore"
)

const (
	heroCarousel    = "hero"
	reviewsCarousel = "reviews"
)

var errUnknownCarousel = errors.New("unknown carousel")

func slideCount(st site, name string) (int, error) {
	switch name {
	case heroCarousel:
		return len(st.catalog.Hero), nil
	case reviewsCarousel:
		return len(st.catalog.Testimonials), nil
	}
	return 0, errUnknownCarousel
}

func carouselKey(r *http.Request, st site, name string) string {
	return mw.GetSession(r).ID + "|" + st.variant.ID + "|" + name
}

// carouselController returns the visitor's controller for name. Controllers and their
// autoplay loops exist only for returning sessions; for a session minted by this
// request, or a carousel without slides, it returns nil.
func (s *Server) carouselController(r *http.Request, st site, name string) (*carousel.Controller, error) {
	count, err := slideCount(st, name)
	if err != nil || count == 0 {
		return nil, err
	}
	if !mw.GetSession(r).Returning() {
		return nil, nil
	}
	return s.carousels.Get(carouselKey(r, st, name), func() (*carousel.Controller, error) {
		return carousel.NewController(count,
			carousel.WithInterval(s.cfg.Carousel.Interval),
			carousel.WithTicker(s.newTicker))
	})
}

// initialState is what a visitor without a controller sees.
func initialState(st site, name string) carousel.State {
	count, _ := slideCount(st, name)
	state, err := carousel.NewState(count)
	if err != nil {
		return carousel.State{}
	}
	return state
}

func (s *Server) buildCarouselView(r *http.Request, st site, name string, state carousel.State) handlers.CarouselView {
	return handlers.CarouselView{
		Lang:       st.lang,
		Name:       name,
		State:      state,
		Slides:     st.catalog.Hero,
		Reviews:    st.catalog.Testimonials,
		IntervalMS: s.cfg.Carousel.Interval.Milliseconds(),
		CSRFToken:  mw.CSRFToken(r),
	}
}

// carouselView renders name for a full page. It reuses an existing controller but never
// creates one; the first poll or click does that.
func (s *Server) carouselView(r *http.Request, st site, name string) handlers.CarouselView {
	state := initialState(st, name)
	if c, ok := s.carousels.Peek(carouselKey(r, st, name)); ok {
		state = c.State()
	}
	return s.buildCarouselView(r, st, name, state)
}

// carouselAction resolves the controller for the {name} route and renders the state
// returned by fn. Visitors without a controller get the first slide.
func (s *Server) carouselAction(w http.ResponseWriter, r *http.Request, fn func(*carousel.Controller) (carousel.State, error)) {
	st, err := s.site(r)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	name := chi.URLParam(r, "name")
	count, err := slideCount(st, name)
	if err != nil || count == 0 {
		s.NotFound(w, r)
		return
	}
	c, err := s.carouselController(r, st, name)
	if errors.Is(err, sessionstore.ErrClosed) {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if c == nil {
		s.render.fragment(w, r, http.StatusOK, "carousel_"+name, s.buildCarouselView(r, st, name, initialState(st, name)))
		return
	}
	state, err := fn(c)
	if errors.Is(err, carousel.ErrIndexOutOfRange) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render.fragment(w, r, http.StatusOK, "carousel_"+name, s.buildCarouselView(r, st, name, state))
}

// CarouselFragment renders the current slide; autoplaying carousels poll it.
func (s *Server) CarouselFragment(w http.ResponseWriter, r *http.Request) {
	s.carouselAction(w, r, func(c *carousel.Controller) (carousel.State, error) { return c.State(), nil })
}

// CarouselNext advances one slide and stops autoplay.
func (s *Server) CarouselNext(w http.ResponseWriter, r *http.Request) {
	s.carouselAction(w, r, func(c *carousel.Controller) (carousel.State, error) { return c.Next(), nil })
}

// CarouselPrev goes back one slide and stops autoplay.
func (s *Server) CarouselPrev(w http.ResponseWriter, r *http.Request) {
	s.carouselAction(w, r, func(c *carousel.Controller) (carousel.State, error) { return c.Previous(), nil })
}

// CarouselAutoplay toggles autoplay.
func (s *Server) CarouselAutoplay(w http.ResponseWriter, r *http.Request) {
	s.carouselAction(w, r, func(c *carousel.Controller) (carousel.State, error) { return c.ToggleAutoPlay(), nil })
}

// CarouselGoTo jumps to the slide in the {index} route parameter.
func (s *Server) CarouselGoTo(w http.ResponseWriter, r *http.Request) {
	s.carouselAction(w, r, func(c *carousel.Controller) (carousel.State, error) {
		i, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			return c.State(), carousel.ErrIndexOutOfRange
		}
		return c.GoTo(i)
	})
}
