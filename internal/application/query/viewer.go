// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"github.com/golearn/learning-hub/internal/domain/shared"
)

// Viewer - тот, кто выполняет запрос (из токена).
type Viewer struct {
	LearnerID string
	Role      shared.Role
}

// canView: свои данные видны всегда, чужие - преподавателю и администратору.
func (v Viewer) canView(learnerID string) error {
	if v.LearnerID == "" {
		return shared.NewDomainError("query", "Authorize", shared.ErrUnauthorized, "viewer is not authenticated")
	}
	if v.LearnerID == learnerID || v.Role.CanViewOthers() {
		return nil
	}
	return shared.NewDomainError("query", "Authorize", shared.ErrForbidden, "not allowed to view another learner")
}
