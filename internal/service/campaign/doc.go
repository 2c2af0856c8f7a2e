// Package campaign implements the campaign delivery engine.
//
// The service layer contains all business logic for creating, preparing,
// dispatching, and completing bulk mailings. It depends on repository
// interfaces defined in this package and should never import from api/.
//
// Repository implementations live in repository/postgres/.
package campaign
