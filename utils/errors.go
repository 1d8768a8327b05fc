package utils

// PermError is an error that ReliableExec will not retry
type PermError string

func (e PermError) Error() string {
	return string(e)
}

func (e PermError) IsPermanent() bool {
	return true
}
