package notify_test

import (
	"fmt"
	"log"
	"time"

	"github.com/cliaimonitor/agentmesh/internal/notify"
	"github.com/cliaimonitor/agentmesh/internal/orchestrator"
	"github.com/cliaimonitor/agentmesh/internal/protocol"
	"github.com/cliaimonitor/agentmesh/internal/tasks"
)

// Example: wiring the default manager into an Orchestrator's event stream
// so every task/agent event reaches toast, terminal, and dashboard banner.
func Example_wireIntoOrchestrator() {
	orc := orchestrator.New(orchestrator.DefaultConfig("gw1"), nil)

	router := notify.NewRouter([]notify.Channel{
		notify.NewManagerChannel(notify.NewDefaultManager(), orc.Tasks.GetTask),
	})
	orc.OnEvent(nil, router.Route)
}

// Example: Custom configuration
func ExampleNewManager() {
	config := notify.Config{
		AppID:          "AGENTMESH",
		DashboardURL:   "http://localhost:8080",
		EnableToast:    true,
		EnableTerminal: true,
		EnableBanner:   true,
		Logger:         log.Default(),
	}

	manager := notify.NewManager(config)

	manager.Notify(notify.BannerTypeInfo, "gateway started", false)
}

// Example: Individual notification channels
func ExampleManager_ShowToast() {
	manager := notify.NewDefaultManager()

	err := manager.ShowToast("Task Complete", "coder-1 finished task t-42")
	if err != nil {
		log.Printf("Toast notification failed: %v", err)
	}
}

// Example: Terminal title flash
func ExampleManager_FlashTerminal() {
	manager := notify.NewDefaultManager()
	manager.SetTerminalTitle("gw1")

	manager.FlashTerminal("task t-42 failed - attention needed")

	time.Sleep(5 * time.Second)
	manager.ClearAlert()
}

// Example: Dashboard banner, read back via GetBannerState the way an HTTP
// handler exposing dashboard state would.
func ExampleManager_GetBannerState() {
	manager := notify.NewDefaultManager()

	manager.Notify(notify.BannerTypeWarning, "task t-42 completed partially", false)

	state := manager.GetBannerState()
	fmt.Printf("Banner visible: %v, type: %s\n", state.Visible, state.Type)

	manager.ClearAlert()
}

// Example: Enable/Disable notifications
func ExampleManager_Disable() {
	manager := notify.NewDefaultManager()

	manager.Disable()

	err := manager.ShowToast("Test", "This won't show")
	if err != nil {
		fmt.Println("Notifications are disabled")
	}

	manager.Enable()
	manager.Notify(notify.BannerTypeInfo, "maintenance complete", false)
}

// Example: escalating a failed task to every channel at once via Notify's
// escalate flag, the way ManagerChannel does for task.completed events
// whose result status is failure/timeout.
func ExampleManager_Notify() {
	manager := notify.NewDefaultManager()

	err := manager.Notify(notify.BannerTypeError, "task t-42 (\"deploy service\") failed: connection refused", true)
	if err != nil {
		log.Printf("Failed to notify operator: %v", err)
	}

	// Triggers, in order:
	// 1. Windows toast notification (if on Windows)
	// 2. Terminal title change
	// 3. Dashboard banner (red, error severity)

	manager.ClearAlert()
}

// Example: rendering a ManagerChannel's view of a completed task without a
// live Orchestrator, useful for exercising message templates in isolation.
func ExampleManagerChannel_Send() {
	lookup := func(taskID string) (tasks.TrackedTask, bool) {
		return tasks.TrackedTask{
			TaskID: taskID,
			Task:   "deploy service",
			Status: tasks.StatusCompleted,
			Result: &tasks.Result{Status: protocol.ResultFailure, Text: "connection refused"},
		}, true
	}

	channel := notify.NewManagerChannel(notify.NewDefaultManager(), lookup)
	channel.Send(orchestrator.Event{Type: orchestrator.EventTaskCompleted, Detail: "t-42"})
}

// Example: Thread-safe concurrent usage
func ExampleManager_concurrent() {
	manager := notify.NewDefaultManager()

	done := make(chan bool, 3)

	go func() {
		manager.Notify(notify.BannerTypeInfo, "coder-1 joined the mesh", false)
		done <- true
	}()

	go func() {
		manager.FlashTerminal("task t-7: 50%")
		done <- true
	}()

	go func() {
		manager.Notify(notify.BannerTypeWarning, "coder-2 left the mesh", true)
		done <- true
	}()

	for i := 0; i < 3; i++ {
		<-done
	}
}

// Example: Platform-specific behavior
func ExampleToastNotifier_IsSupported() {
	toast := notify.NewToastNotifier("AGENTMESH")

	if toast.IsSupported() {
		toast.ShowToast("Alert", "This is a Windows toast")
	} else {
		fmt.Println("Toast not supported on this platform")
	}
}

// Example: Custom terminal title
func ExampleTerminalNotifier_SetOriginalTitle() {
	terminal := notify.NewTerminalNotifier()

	terminal.SetOriginalTitle("agentmesh gw1")
	terminal.FlashTerminal("task t-9 timed out")
	terminal.RestoreTerminalTitle()
}

// Example: Banner types
func ExampleBannerNotifier_Show() {
	banner := notify.NewBannerNotifier()

	banner.Show("mesh ready", notify.BannerTypeInfo)
	banner.Show("coder-2 load above 90%", notify.BannerTypeWarning)
	banner.Show("task t-42 failed", notify.BannerTypeError)
	banner.Show("coder-2 left the mesh", notify.BannerTypeEscalation)

	banner.Clear()
}
