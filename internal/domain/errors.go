package domain

// Auth error codes returned by the authentication provider.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeTooManyRequests    = "too_many_requests"
	CodeEmailTaken         = "email_taken"
	CodeInvalidToken       = "invalid_token"
	CodeBadRequest         = "bad_request"
)

const genericAuthMessage = "Erro de conexão. Verifique sua internet e tente novamente."

var authMessages = map[string]string{
	CodeInvalidCredentials: "E-mail ou senha incorretos.",
	CodeTooManyRequests:    "Muitas tentativas. Aguarde alguns minutos e tente novamente.",
	CodeEmailTaken:         "Este e-mail já está cadastrado.",
	CodeInvalidToken:       "Link inválido ou expirado. Solicite um novo.",
	CodeBadRequest:         "Verifique os dados informados. A senha precisa ter pelo menos 8 caracteres.",
}

// AuthErrorMessage maps a provider error code to the message shown to the
// user. Unknown codes get a generic connectivity message.
func AuthErrorMessage(code string) string {
	if msg, ok := authMessages[code]; ok {
		return msg
	}
	return genericAuthMessage
}

// AIFailedMessage is shown when recipe generation or image analysis fails
// for a reason other than the service being unavailable.
const AIFailedMessage = "Não foi possível processar. Tente novamente."
