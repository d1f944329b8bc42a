package request

// ByIDRequest is a common struct for endpoints that require a numeric ID path parameter.
// Range checks are left to the service so a zero id reports the domain error.
type ByIDRequest struct {
	ID int64 `uri:"id"`
}
