package notify

import (
	"log"
	"os"
	"testing"
)

func TestNewManager(t *testing.T) {
	config := Config{
		AppID:          "TestApp",
		DashboardURL:   "http://localhost:8080",
		EnableToast:    true,
		EnableTerminal: true,
		EnableBanner:   true,
		Logger:         log.New(os.Stdout, "", 0),
	}

	manager := NewManager(config)
	if manager == nil {
		t.Fatal("NewManager returned nil")
	}

	if !manager.IsEnabled() {
		t.Error("Expected manager to be enabled")
	}
}

func TestNewDefaultManager(t *testing.T) {
	manager := NewDefaultManager()
	if manager == nil {
		t.Fatal("NewDefaultManager returned nil")
	}

	if !manager.IsEnabled() {
		t.Error("Expected default manager to be enabled")
	}
}

func TestManagerEnableDisable(t *testing.T) {
	manager := NewDefaultManager()

	// Initially enabled
	if !manager.IsEnabled() {
		t.Error("Expected manager to be enabled initially")
	}

	// Disable
	manager.Disable()
	if manager.IsEnabled() {
		t.Error("Expected manager to be disabled after Disable()")
	}

	// Enable
	manager.Enable()
	if !manager.IsEnabled() {
		t.Error("Expected manager to be enabled after Enable()")
	}
}

func TestManagerShowToast(t *testing.T) {
	manager := NewDefaultManager()

	err := manager.ShowToast("Test Title", "Test Message")

	// Error behavior depends on platform
	// We mainly test that it doesn't panic
	_ = err
}

func TestManagerFlashTerminal(t *testing.T) {
	manager := NewDefaultManager()

	err := manager.FlashTerminal("Test Alert")

	// Should not panic
	_ = err
}

func TestManagerNotifyShowsBannerAtGivenSeverity(t *testing.T) {
	manager := NewDefaultManager()

	err := manager.Notify(BannerTypeWarning, "Test Message", false)
	if err != nil {
		t.Errorf("Notify returned error: %v", err)
	}

	state := manager.GetBannerState()
	if !state.Visible {
		t.Error("Expected banner to be visible")
	}
	if state.Message != "Test Message" {
		t.Errorf("Expected message 'Test Message', got '%s'", state.Message)
	}
	if state.Type != BannerTypeWarning {
		t.Errorf("Expected banner type %s, got %s", BannerTypeWarning, state.Type)
	}
}

func TestManagerNotifyEscalates(t *testing.T) {
	manager := NewDefaultManager()

	err := manager.Notify(BannerTypeError, "Agent needs operator attention", true)

	// Toast/terminal error behavior depends on platform; the banner always
	// applies regardless of escalate.
	_ = err

	state := manager.GetBannerState()
	if !state.Visible {
		t.Error("Expected banner to be visible after escalating notification")
	}
}

func TestManagerClearAlert(t *testing.T) {
	manager := NewDefaultManager()

	// Show banner first
	manager.Notify(BannerTypeInfo, "Test Message", false)

	// Clear all alerts
	err := manager.ClearAlert()
	if err != nil {
		t.Errorf("ClearAlert returned error: %v", err)
	}

	// Verify banner is cleared
	state := manager.GetBannerState()
	if state.Visible {
		t.Error("Expected banner to be hidden after ClearAlert")
	}
}

func TestManagerGetBannerState(t *testing.T) {
	manager := NewDefaultManager()

	// Initially hidden
	state := manager.GetBannerState()
	if state.Visible {
		t.Error("Expected banner to be hidden initially")
	}

	// Show banner
	manager.Notify(BannerTypeInfo, "Test", false)
	state = manager.GetBannerState()
	if !state.Visible {
		t.Error("Expected banner to be visible")
	}
	if state.Message != "Test" {
		t.Errorf("Expected message 'Test', got '%s'", state.Message)
	}
}

func TestManagerSetTerminalTitle(t *testing.T) {
	manager := NewDefaultManager()

	// Should not panic
	manager.SetTerminalTitle("Custom Title")

	// Verify terminal title was set
	if manager.terminal.GetCurrentTitle() != "Custom Title" {
		t.Error("Terminal title was not set correctly")
	}
}

func TestManagerDisabledNotifications(t *testing.T) {
	manager := NewDefaultManager()
	manager.Disable()

	// All notification methods should return error when disabled
	err := manager.ShowToast("Test", "Test")
	if err == nil {
		t.Error("Expected error when notifications disabled")
	}

	err = manager.FlashTerminal("Test")
	if err == nil {
		t.Error("Expected error when notifications disabled")
	}

	err = manager.Notify(BannerTypeInfo, "Test", true)
	if err == nil {
		t.Error("Expected error when notifications disabled")
	}
}

func TestManagerConcurrentAccess(t *testing.T) {
	manager := NewDefaultManager()

	done := make(chan bool)

	// Writer goroutines
	for i := 0; i < 10; i++ {
		go func(n int) {
			for j := 0; j < 50; j++ {
				switch n % 4 {
				case 0:
					manager.Notify(BannerTypeInfo, "Test", false)
				case 1:
					manager.FlashTerminal("Test")
				case 2:
					manager.Notify(BannerTypeError, "Test", true)
				case 3:
					manager.ClearAlert()
				}
			}
			done <- true
		}(i)
	}

	// Reader goroutines
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 50; j++ {
				manager.GetBannerState()
				manager.IsEnabled()
			}
			done <- true
		}()
	}

	// Wait for all goroutines
	for i := 0; i < 20; i++ {
		<-done
	}
}

func TestManagerNilLogger(t *testing.T) {
	config := Config{
		AppID:          "TestApp",
		EnableToast:    true,
		EnableTerminal: true,
		EnableBanner:   true,
		Logger:         nil, // Nil logger should use default
	}

	manager := NewManager(config)
	if manager == nil {
		t.Fatal("NewManager with nil logger returned nil")
	}

	// Should not panic with nil logger
	manager.Notify(BannerTypeInfo, "Test", false)
}

func TestManagerPartialConfig(t *testing.T) {
	// Test with only some notification types enabled
	config := Config{
		AppID:          "TestApp",
		EnableToast:    false,
		EnableTerminal: true,
		EnableBanner:   true,
	}

	manager := NewManager(config)
	if !manager.IsEnabled() {
		t.Error("Expected manager to be enabled when some notification types are enabled")
	}

	// Test with all disabled
	config = Config{
		AppID:          "TestApp",
		EnableToast:    false,
		EnableTerminal: false,
		EnableBanner:   false,
	}

	manager = NewManager(config)
	if manager.IsEnabled() {
		t.Error("Expected manager to be disabled when all notification types are disabled")
	}
}
