package main

import "os"

// @title Identity API
// @version 0.1.0
// @description Sign-in and account linking for users with several identity providers.
// @schemes http https
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
