package util

type Envelope map[string]any

func Error(message string) Envelope {
	return Envelope{"error": message}
}

// Outcome is the {message, success} body used by the credential recovery endpoints.
func Outcome(message string, success bool) Envelope {
	return Envelope{"message": message, "success": success}
}

// Validity is the {valid, message} body of the reset token check.
func Validity(valid bool, message string) Envelope {
	return Envelope{"valid": valid, "message": message}
}
