package api

// Navigator receives the redirect issued when the session cannot be
// recovered.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

// Navigate calls f(path).
func (f NavigatorFunc) Navigate(path string) { f(path) }

type noopNavigator struct{}

func (noopNavigator) Navigate(string) {}
