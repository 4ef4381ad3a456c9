package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           scribed debug API
// @version         1.0
// @description     Read-only status and metrics endpoints for the scribed transcription daemon.
//
// @contact.name   scribed maintainers
// @contact.url    https://github.com/your-org/scribed
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
