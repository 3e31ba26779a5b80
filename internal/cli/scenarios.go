package cli

// scenario is one scripted message used by demo and the simulator.
type scenario struct {
	Name     string
	Username string
	Message  string
	Direct   bool
}

var demoScenarios = []scenario{
	{Name: "New complaint", Username: "angry_user", Message: "My withdrawal is stuck for 3 days! This is unacceptable!"},
	{Name: "User has ticket", Username: "patient_user", Message: "I've raised a ticket #12345 but no response yet"},
	{Name: "DM with ticket number (escalation)", Username: "patient_user", Message: "My ticket number is #12345", Direct: true},
	{Name: "Follow-up", Username: "angry_user", Message: "It's been 2 hours! When will you fix this?"},
	{Name: "Credentials shared (security warning)", Username: "naive_user", Message: "My email is user@gmail.com and password is 1234, please help!"},
	{Name: "General question", Username: "curious_user", Message: "How do I enable 2FA on Mudrex?"},
	{Name: "DM without ticket", Username: "confused_user", Message: "Hi, I need help with my account", Direct: true},
}

func (s scenario) kind() string {
	if s.Direct {
		return "DM"
	}
	return "Public post"
}
