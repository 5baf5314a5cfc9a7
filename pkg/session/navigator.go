package session

// Navigator moves the application to its login entry point
type Navigator interface {
	RedirectToLogin()
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func()

// RedirectToLogin implements Navigator
func (f NavigatorFunc) RedirectToLogin() {
	f()
}

type nopNavigator struct{}

func (nopNavigator) RedirectToLogin() {}
