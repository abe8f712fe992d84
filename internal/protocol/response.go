package protocol

import "fmt"

// Response formats. Every processed command yields exactly one ACK or ERROR
// line; MSG lines are pushed asynchronously by other participants' sends.

func Ack(text string) string {
	return "ACK: " + text
}

func Error(text string) string {
	return "ERROR: " + text
}

func Msg(sender, content string) string {
	return fmt.Sprintf("MSG %s: %s", sender, content)
}
