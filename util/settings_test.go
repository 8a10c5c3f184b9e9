package util

import (
	"os"
	"testing"
)

func TestGetRandStringVariousLengths(t *testing.T) {
	tests := []struct {
		name   string
		length int
	}{
		{"Zero length", 0},
		{"Single character", 1},
		{"Small string", 5},
		{"Medium string", 10},
		{"Large string", 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetRandString(tt.length)

			if len(result) != tt.length {
				t.Errorf("GetRandString(%d) = length %d, expected %d", tt.length, len(result), tt.length)
			}

			// Verify all characters are letters
			for i, char := range result {
				if !((char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z')) {
					t.Errorf("GetRandString(%d) contains non-letter at position %d: %c", tt.length, i, char)
				}
			}
		})
	}
}

func TestGetRandStringRandomness(t *testing.T) {
	const length = 10
	const iterations = 100

	strings := make(map[string]bool)

	for i := 0; i < iterations; i++ {
		result := GetRandString(length)
		if strings[result] {
			t.Errorf("GetRandString generated duplicate string: %s", result)
		}
		strings[result] = true
	}

	if len(strings) < iterations {
		t.Errorf("GetRandString generated %d unique strings out of %d iterations", len(strings), iterations)
	}
}

func TestRegisterNewConfigListener(t *testing.T) {
	// Clear existing listeners
	config_listeners = []func(){}

	called1 := false
	called2 := false

	listener1 := func() { called1 = true }
	listener2 := func() { called2 = true }

	RegisterNewConfigListener(listener1)
	RegisterNewConfigListener(listener2)

	if len(config_listeners) != 2 {
		t.Errorf("Expected 2 listeners, got %d", len(config_listeners))
	}

	// Duplicate listeners are not added
	RegisterNewConfigListener(listener1)

	if len(config_listeners) != 2 {
		t.Errorf("Expected 2 listeners after duplicate addition, got %d", len(config_listeners))
	}

	OnNewConfig()

	if !called1 || !called2 {
		t.Error("OnNewConfig should call all registered listeners")
	}
}

func TestOnNewConfig(t *testing.T) {
	config_listeners = []func(){}

	callCount := 0
	listener := func() { callCount++ }

	RegisterNewConfigListener(listener)
	RegisterNewConfigListener(listener)               // Should be deduplicated
	RegisterNewConfigListener(func() { callCount++ }) // Different function

	OnNewConfig()

	if callCount != 2 {
		t.Errorf("Expected 2 listener calls, got %d", callCount)
	}
}

func TestSetupConfigDefaults(t *testing.T) {
	SetupConfig()

	brokerURI := Config.GetString("Broker_URI")
	if brokerURI == "" {
		t.Error("Broker_URI default should not be empty")
	}

	if prefix := Config.GetString("Topic_prefix"); prefix == "" {
		t.Error("Topic_prefix default should not be empty")
	}

	motionDelay := Config.GetInt64("Motion_delay_default")
	if motionDelay != 3600 {
		t.Errorf("Motion_delay_default = %d, expected 3600", motionDelay)
	}

	occupancyDelay := Config.GetInt64("Occupancy_delay_default")
	if occupancyDelay != 43200 {
		t.Errorf("Occupancy_delay_default = %d, expected 43200", occupancyDelay)
	}

	if port := Config.GetInt("Status_port"); port <= 0 {
		t.Errorf("Status_port default should be positive, got %d", port)
	}
}

func TestSetupConfigEnvironmentVariables(t *testing.T) {
	testEnvVar := "TEST_BROKER_URI"
	expectedValue := "tcp://test-env-broker:1883"

	_ = os.Setenv(testEnvVar, expectedValue)       //nolint:errcheck // test setup
	defer func() { _ = os.Unsetenv(testEnvVar) }() //nolint:errcheck // test cleanup

	SetupConfig()

	if Config.IsSet(testEnvVar) {
		value := Config.GetString(testEnvVar)
		if value != expectedValue {
			t.Errorf("Environment variable %s = %s, expected %s", testEnvVar, value, expectedValue)
		}
	}
}

func TestSetupConfigFileSearch(t *testing.T) {
	tempConfigContent := `{
		"test_key": "test_value",
		"test_number": 42
	}`

	configFile, err := os.CreateTemp(".", "presence_controller*.json")
	if err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}
	defer func() { _ = os.Remove(configFile.Name()) }() //nolint:errcheck // test cleanup

	if _, err := configFile.WriteString(tempConfigContent); err != nil {
		t.Fatalf("Failed to write to temp config file: %v", err)
	}
	configFile.Close()

	expectedName := "presence_controller.json"
	_ = os.Rename(configFile.Name(), expectedName) //nolint:errcheck // test setup
	defer func() { _ = os.Remove(expectedName) }() //nolint:errcheck // test cleanup

	SetupConfig()

	testValue := Config.GetString("test_key")
	if testValue != "test_value" {
		t.Errorf("Config file test_key = %s, expected test_value", testValue)
	}

	testNumber := Config.GetInt("test_number")
	if testNumber != 42 {
		t.Errorf("Config file test_number = %d, expected 42", testNumber)
	}
}

func TestConfigurationReadiness(t *testing.T) {
	SetupConfig()

	if Config == nil {
		t.Error("Config should be initialized after SetupConfig")
	}

	testKey := "test_watch_key"
	testValue := "test_watch_value"

	Config.Set(testKey, testValue)
	if retrieved := Config.GetString(testKey); retrieved != testValue {
		t.Errorf("Config.Set/Get failed: got %s, expected %s", retrieved, testValue)
	}

	// Non-existent keys return zero values
	if v := Config.GetString("non_existent_key"); v != "" {
		t.Errorf("Non-existent string key should return empty string, got %s", v)
	}
	if v := Config.GetInt("non_existent_int_key"); v != 0 {
		t.Errorf("Non-existent int key should return 0, got %d", v)
	}
}
