package disease

import "strings"

const classSeparator = "___"

// DisplayName turns a classifier label such as "Tomato___Late_blight" into "Tomato - Late blight".
func DisplayName(label string) string {
	if !strings.Contains(label, classSeparator) {
		return readable(label)
	}

	plant, condition, _ := strings.Cut(label, classSeparator)
	if IsHealthy(label) {
		return readable(plant) + " (Healthy)"
	}
	return readable(plant) + " - " + readable(condition)
}

func IsHealthy(label string) bool {
	return label == "Healthy" || strings.HasSuffix(strings.ToLower(label), classSeparator+"healthy")
}

func readable(raw string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(raw, "_", " ")), " ")
}
