package handlers

import "github.com/danielgtaylor/huma/v2"

// APIConfig returns the huma configuration for the JSON API. Response bodies
// carry no $schema link so they match what the web client already reads.
func APIConfig() huma.Config {
	config := huma.DefaultConfig("Finance Tracker API", "1.0.0")
	config.Info.Description = "Income and expense records of the logged in user."
	config.CreateHooks = nil
	return config
}
