package domain

// validTransitions — единственное описание допустимых ребер жизненного цикла.
// Любой переход, которого здесь нет, запрещен.
var validTransitions = map[string][]string{
	StatusToAssign:   {StatusCritical, StatusBooked, StatusCancelled},
	StatusCritical:   {StatusBooked, StatusCancelled},
	StatusBooked:     {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// CanTransition проверяет, разрешено ли ребро from -> to.
// Возвращает *ConflictError с именем нелегального ребра.
func CanTransition(from, to string) error {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return &ConflictError{From: from, To: to, Reason: "illegal status transition"}
}

// ValidStatus сообщает, известен ли статус.
func ValidStatus(s string) bool {
	_, ok := validTransitions[s]
	return ok
}
