package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"concierge/pkg/catalog"
	"concierge/pkg/completion"
	"concierge/pkg/config"
	"concierge/pkg/logger"
	"concierge/pkg/prompt"
	"concierge/pkg/weather"
)

// Flow names, also used as metric and event labels.
const (
	FlowWelcome     = "welcome"
	FlowMainMenu    = "menu"
	FlowMeals       = "meals"
	FlowActivities  = "activities"
	FlowRestaurants = "restaurants"
	FlowPlans       = "plans"
	FlowWeather     = "weather"
)

// ContentSource is the read side of the catalog.
type ContentSource interface {
	Snapshot() catalog.Content
}

// Hotel holds what the hotel flows read from.
type Hotel struct {
	Name      string
	Catalog   ContentSource
	Weather   weather.Provider
	Completer completion.Completer

	log *slog.Logger
}

// NewHotel checks that every collaborator is present.
func NewHotel(name string, content ContentSource, forecast weather.Provider, completer completion.Completer) (*Hotel, error) {
	if content == nil {
		return nil, errors.New("catalog is required")
	}
	if forecast == nil {
		return nil, errors.New("weather provider is required")
	}
	if completer == nil {
		return nil, errors.New("completer is required")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = config.DefaultHotelName
	}

	return &Hotel{
		Name:      name,
		Catalog:   content,
		Weather:   forecast,
		Completer: completer,
		log:       slog.Default().With("component", "flow.hotel"),
	}, nil
}

// NewHotelDispatcher wires the hotel rules and the concierge catch-all.
func NewHotelDispatcher(h *Hotel) (*Dispatcher, error) {
	return NewDispatcher(h.Rules(), h.CatchAll())
}

// Rules returns the keyword flows in priority order.
func (h *Hotel) Rules() []Rule {
	return []Rule{
		{Name: FlowWelcome, Triggers: []string{"hola", "hi", "buenos dias", "buenas"}, Respond: h.static(func(catalog.Content) string {
			return welcomeText(h.Name)
		})},
		{Name: FlowMainMenu, Triggers: []string{"menu", "opciones"}, Respond: h.static(func(catalog.Content) string {
			return mainMenuText(h.Name)
		})},
		{Name: FlowMeals, Triggers: []string{"1", "menu del dia", "comida"}, Respond: h.static(func(content catalog.Content) string {
			return mealsText(content.Meals)
		})},
		{Name: FlowActivities, Triggers: []string{"2", "actividades"}, Respond: h.static(func(content catalog.Content) string {
			return activitiesText(content.Activities)
		})},
		{Name: FlowRestaurants, Triggers: []string{"3", "restaurantes"}, Respond: h.static(func(content catalog.Content) string {
			return restaurantsText(content.Restaurants)
		})},
		{Name: FlowPlans, Triggers: []string{"4", "planes"}, Respond: h.static(func(content catalog.Content) string {
			return plansText(content.Plans)
		})},
		{Name: FlowWeather, Triggers: []string{"5", "clima"}, Respond: h.weatherReply},
	}
}

func (h *Hotel) static(render func(catalog.Content) string) Responder {
	return func(context.Context, Message) (Reply, error) {
		return Reply{Text: render(h.Catalog.Snapshot())}, nil
	}
}

func (h *Hotel) weatherReply(ctx context.Context, _ Message) (Reply, error) {
	summary, err := h.Weather.Current(ctx)
	if err != nil || strings.TrimSpace(summary) == "" {
		h.log.Warn("Weather lookup failed", "error", err)
		summary = weatherUnavailable
	}

	return Reply{Text: weatherText(summary)}, nil
}

// CatchAll answers anything no rule matched. Empty messages get the welcome
// text; everything else goes to the LLM with the current catalog as context.
func (h *Hotel) CatchAll() Responder {
	return func(ctx context.Context, msg Message) (Reply, error) {
		if Normalize(msg.Text) == "" {
			return Reply{Text: welcomeText(h.Name), Flow: FlowWelcome}, nil
		}

		system, err := prompt.Render(prompt.Concierge, prompt.Data{HotelName: h.Name, Content: h.Catalog.Snapshot()})
		if err != nil {
			return Reply{}, fmt.Errorf("build concierge prompt: %w", err)
		}

		h.log.Debug("Forwarding open question to concierge", "chat_id", msg.ChatID, "content", logger.Preview(msg.Text, 120))
		result := h.Completer.Complete(ctx, completion.Request{
			System: system,
			User:   strings.TrimSpace(msg.Text),
		})

		return Reply{Text: result.Text, Completion: &result}, nil
	}
}
