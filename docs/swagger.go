package docs

import "github.com/swaggo/swag"

// @title           TeamSync API
// @version         1.0
// @description     API for team projects, tasks, completion feedback and writing suggestions

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token

// @tag.name Users
// @tag.description User accounts and profiles

// @tag.name Projects
// @tag.description Project management operations

// @tag.name Tasks
// @tag.description Task management operations

// @tag.name Feedback
// @tag.description Completion feedback operations

// @tag.name Suggestions
// @tag.description Writing suggestion operations

// Register swagger info
func SwaggerInfo() *swag.Spec {
	spec, _ := swag.GetSwagger(swag.Name).(*swag.Spec)
	return spec
}
