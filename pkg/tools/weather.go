package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
)

var weatherConditions = []string{"sunny", "partly cloudy", "overcast", "light rain", "windy"}

// WeatherTool returns a simulated forecast. It exists to give the agent
// a parameterized tool to exercise; the payload says so explicitly.
type WeatherTool struct{}

func NewWeatherTool() *WeatherTool {
	return &WeatherTool{}
}

func (t *WeatherTool) GetName() string {
	return "get_weather"
}

func (t *WeatherTool) GetDescription() string {
	return "Get the current weather for a location"
}

func (t *WeatherTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "get_weather",
		Description: "Get the current weather for a location. Returns simulated data.",
		Parameters: []ToolParameter{
			{
				Name:        "location",
				Type:        "string",
				Description: "City or place name, e.g. \"Paris\"",
				Required:    true,
			},
		},
	}
}

type weatherResult struct {
	Location    string `json:"location"`
	Temperature string `json:"temperature"`
	Condition   string `json:"condition"`
	Humidity    string `json:"humidity"`
	Wind        string `json:"wind"`
	Note        string `json:"note"`
}

func (t *WeatherTool) Execute(_ context.Context, args map[string]interface{}) (string, error) {
	location, _ := args["location"].(string)
	location = strings.TrimSpace(location)
	if location == "" {
		return "", fmt.Errorf("location parameter is required")
	}

	// Derive stable pseudo-weather from the location name so repeated
	// queries for the same place agree with each other.
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(location)))
	seed := h.Sum32()

	out, err := json.Marshal(weatherResult{
		Location:    location,
		Temperature: fmt.Sprintf("%d°C", int(seed%30)-2),
		Condition:   weatherConditions[int(seed>>8)%len(weatherConditions)],
		Humidity:    fmt.Sprintf("%d%%", 40+int(seed>>16)%50),
		Wind:        fmt.Sprintf("%d km/h", 4+int(seed>>24)%28),
		Note:        "simulated weather data for demonstration purposes",
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
