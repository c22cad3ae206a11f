package flow

import (
	"strings"

	"concierge/pkg/catalog"
)

const (
	backToMenu         = "Escribe *menu* para volver al menú principal"
	weatherUnavailable = "No se pudo obtener la información del clima"
)

func section(title string, body ...string) string {
	lines := make([]string, 0, len(body)+4)
	lines = append(lines, title, "")
	lines = append(lines, body...)
	lines = append(lines, "", backToMenu)
	return strings.Join(lines, "\n")
}

func welcomeText(hotelName string) string {
	return strings.Join([]string{
		"👋 ¡Bienvenido al " + hotelName + "!",
		"",
		"Soy tu asistente virtual y estoy aquí para ayudarte.",
		"",
		"Escribe *menu* para ver todas las opciones disponibles",
	}, "\n")
}

func mainMenuText(hotelName string) string {
	return strings.Join([]string{
		"🏨 *Bienvenido al " + hotelName + "*",
		"",
		"Selecciona una opción:",
		"",
		"1️⃣ Ver menú del día",
		"2️⃣ Actividades de hoy",
		"3️⃣ Restaurantes recomendados",
		"4️⃣ Planes del hotel",
		"5️⃣ Clima actual",
		"",
		"Responde con el número de la opción que deseas consultar",
	}, "\n")
}

func mealsText(meals catalog.Meals) string {
	return section("🍽️ *Menú del día*",
		"*Desayuno*", meals.Breakfast, "",
		"*Almuerzo*", meals.Lunch, "",
		"*Cena*", meals.Dinner,
	)
}

func activitiesText(activities []string) string {
	return section("📅 *Actividades de hoy*", activities...)
}

func restaurantsText(restaurants []string) string {
	return section("🍽️ *Restaurantes Recomendados*", restaurants...)
}

func plansText(plans []string) string {
	return section("💫 *Planes del Hotel*", plans...)
}

func weatherText(summary string) string {
	return section("🌡️ *Clima actual*", summary)
}
