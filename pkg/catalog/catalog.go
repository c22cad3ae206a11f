// Package catalog holds the hotel content the concierge answers from.
//
// The current content is published through an atomic pointer. Writers build
// a complete replacement and swap it in, so a reader observes either the old
// or the new content and never a mix of both.
package catalog

import (
	"errors"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/samber/lo"

	"concierge/pkg/config"
)

// ErrIncompleteMeals is returned when a meal update omits any of the three meals.
var ErrIncompleteMeals = errors.New("breakfast, lunch and dinner are all required")

// Meals is the day's menu.
type Meals struct {
	Breakfast string `json:"breakfast"`
	Lunch     string `json:"lunch"`
	Dinner    string `json:"dinner"`
}

// Content is one immutable view of the hotel catalog.
type Content struct {
	Meals       Meals    `json:"meals"`
	Activities  []string `json:"activities"`
	Restaurants []string `json:"restaurants"`
	Plans       []string `json:"plans"`
}

func (c Content) clone() Content {
	return Content{
		Meals:       c.Meals,
		Activities:  slices.Clone(c.Activities),
		Restaurants: slices.Clone(c.Restaurants),
		Plans:       slices.Clone(c.Plans),
	}
}

// Catalog is the process-wide content accessor.
type Catalog struct {
	current atomic.Pointer[Content]
}

// New returns a catalog seeded with a copy of initial.
func New(initial Content) *Catalog {
	c := &Catalog{}
	seed := initial.clone()
	c.current.Store(&seed)
	return c
}

// NewFromConfig seeds a catalog from the built-in content with any
// non-empty overrides from the hotel configuration applied.
func NewFromConfig(cfg config.HotelConfig) *Catalog {
	content := Default()
	seed := cfg.Catalog
	if seed == nil {
		return New(content)
	}

	content.Meals.Breakfast = lo.CoalesceOrEmpty(strings.TrimSpace(seed.Breakfast), content.Meals.Breakfast)
	content.Meals.Lunch = lo.CoalesceOrEmpty(strings.TrimSpace(seed.Lunch), content.Meals.Lunch)
	content.Meals.Dinner = lo.CoalesceOrEmpty(strings.TrimSpace(seed.Dinner), content.Meals.Dinner)
	content.Activities = overrideList(content.Activities, seed.Activities)
	content.Restaurants = overrideList(content.Restaurants, seed.Restaurants)
	content.Plans = overrideList(content.Plans, seed.Plans)

	return New(content)
}

// Snapshot returns a copy of the current content. Callers may modify it freely.
func (c *Catalog) Snapshot() Content {
	return c.current.Load().clone()
}

// UpdateMeals replaces the three meals in one step. Activities, restaurants
// and plans are carried over unchanged. Partial updates are rejected before
// anything is published.
func (c *Catalog) UpdateMeals(breakfast, lunch, dinner string) error {
	meals := Meals{
		Breakfast: strings.TrimSpace(breakfast),
		Lunch:     strings.TrimSpace(lunch),
		Dinner:    strings.TrimSpace(dinner),
	}
	if lo.Contains([]string{meals.Breakfast, meals.Lunch, meals.Dinner}, "") {
		return ErrIncompleteMeals
	}

	for {
		previous := c.current.Load()
		next := previous.clone()
		next.Meals = meals
		if c.current.CompareAndSwap(previous, &next) {
			return nil
		}
	}
}

func overrideList(current []string, override []string) []string {
	items := lo.Compact(lo.Map(override, func(item string, _ int) string {
		return strings.TrimSpace(item)
	}))
	if len(items) == 0 {
		return current
	}

	return items
}

// Default returns the built-in content for Hotel Paradise.
func Default() Content {
	return Content{
		Meals: Meals{
			Breakfast: "🍳 Desayuno de hoy: Huevos revueltos, pan recién horneado, frutas frescas, café/té",
			Lunch:     "🍝 Almuerzo de hoy: Pasta al pesto, ensalada César, sopa del día",
			Dinner:    "🍖 Cena de hoy: Filete de res, puré de papas, vegetales asados",
		},
		Activities: []string{
			"🏊‍♂️ 9:00 AM - Clase de natación en la piscina",
			"🧘‍♀️ 11:00 AM - Yoga en el jardín",
			"🎯 3:00 PM - Torneo de dardos en el bar",
			"💃 8:00 PM - Noche de baile latino",
		},
		Restaurants: []string{
			"🍽️ La Trattoria Di Marco - Comida italiana (⭐⭐⭐⭐½)",
			"🥘 El Rincón Criollo - Comida local (⭐⭐⭐⭐)",
			"🍣 Sushi Zen - Comida japonesa (⭐⭐⭐⭐)",
			"🥩 The Grill House - Carnes y parrilla (⭐⭐⭐⭐½)",
		},
		Plans: []string{
			"🌟 Plan Todo Incluido - Comidas y bebidas ilimitadas",
			"🎯 Plan Aventura - Incluye tours y actividades extremas",
			"💆‍♀️ Plan Relax - Acceso ilimitado al spa",
			"👨‍👩‍👦 Plan Familiar - Actividades para niños y descuentos",
		},
	}
}
