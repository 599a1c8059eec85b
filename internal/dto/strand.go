package dto

// StrandRequest is used for both create and update.
type StrandRequest struct {
	Short       string  `json:"short" validate:"required,max=16"`
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description"`
	Icon        string  `json:"icon"`
}
