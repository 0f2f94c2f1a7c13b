package http

import (
	"errors"
	"mime/multipart"

	"github.com/go-playground/validator/v10"
)

type loginForm struct {
	Username  string `form:"username" binding:"required"`
	Password  string `form:"password" binding:"required"`
	CSRFToken string `form:"csrf_token"`
}

type uploadForm struct {
	File      *multipart.FileHeader `form:"file" binding:"required"`
	CSRFToken string                `form:"csrf_token"`
}

var fieldLabels = map[string]string{
	"Username": "Username",
	"Password": "Password",
	"File":     "Upload File",
}

// formErrors turns binding failures into one notice per invalid field.
func formErrors(err error) []flashMessage {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return notice("danger", "The form could not be read, please try again.")
	}
	msgs := make([]flashMessage, 0, len(verrs))
	for _, fe := range verrs {
		label := fieldLabels[fe.Field()]
		if label == "" {
			label = fe.Field()
		}
		msgs = append(msgs, flashMessage{
			Category: "danger",
			Message:  "Error in the " + label + " field - This field is required.",
		})
	}
	return msgs
}
