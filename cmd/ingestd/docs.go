package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           ingestd API
// @version         1.0
// @description     Blocking ingest event gate: producers emit, a single listener resolves.
//
// @contact.name   ingestd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
