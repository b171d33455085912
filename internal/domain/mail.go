package domain

const (
	MailTypeCreateUser  = "create_user"
	MailTypeRunFinished = "run_finished"
)

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type CreateUserMailData struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type RunFinishedMailData struct {
	FullName    string    `json:"fullName"`
	RunID       int64     `json:"runID"`
	RunName     string    `json:"runName"`
	Status      RunStatus `json:"status"`
	Generations int       `json:"generations"`
	BestFitness float64   `json:"bestFitness"`
	Conflicts   int       `json:"conflicts"`
	Message     string    `json:"message"`
}
