package completion

import (
	"strings"
)

// Topic selects which canned reply a failed completion degrades to.
type Topic string

const (
	TopicConcierge Topic = "concierge"
	TopicWeather   Topic = "weather"
)

// Category names why a completion fell back. The zero value means success.
type Category string

const (
	CategoryNone        Category = ""
	CategoryRateLimited Category = "rate_limited"
	CategoryUnavailable Category = "unavailable"
	CategoryFailed      Category = "failed"
)

const (
	rateLimitedWeather = "🌤️ En este momento no puedo consultar el pronóstico.\n\n" +
		"Escribe *5* para ver el clima publicado por el hotel o pregunta en recepción."
	rateLimitedConcierge = "🛎️ Nuestro concierge virtual está atendiendo muchas consultas.\n\n" +
		"Intenta de nuevo en unos minutos o escribe *menu* para ver las opciones disponibles."
	genericFallback = "😔 Lo siento, no pude procesar tu consulta en este momento.\n\n" +
		"Puedes:\n" +
		"1️⃣ Escribir *menu* para ver todas las opciones\n" +
		"2️⃣ Llamar a recepción marcando *0* desde tu habitación\n" +
		"3️⃣ Acercarte al mostrador de recepción, abierto las 24 horas"
)

var weatherKeywords = []string{"clima", "weather", "temperatura", "lluvia", "pronostico", "pronóstico"}

// TopicFor infers the topic from free text. Callers that know the topic
// should set Request.Topic instead.
func TopicFor(text string) Topic {
	lower := strings.ToLower(text)
	for _, keyword := range weatherKeywords {
		if strings.Contains(lower, keyword) {
			return TopicWeather
		}
	}

	return TopicConcierge
}

// Fallback returns the canned reply for a failure category. Only rate-limit
// failures are topic aware; every other failure gets the generic options.
func Fallback(topic Topic, category Category) string {
	if category != CategoryRateLimited {
		return genericFallback
	}

	if topic == TopicWeather {
		return rateLimitedWeather
	}

	return rateLimitedConcierge
}
