package main

// General API documentation for swaggo. Run `make swagger-gen` to regenerate
// internal/apidocs.
//
// @title           servingd API
// @version         1.0
// @description     On-demand model serving: spawns, proxies and evicts model server processes.
//
// @contact.name   servingd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
