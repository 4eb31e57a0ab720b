package app_test

import (
	"histosaga-service/internal/app"
	"histosaga-service/internal/domain"
	"histosaga-service/internal/infra/memory"
	"histosaga-service/internal/offline"
	"histosaga-service/internal/question"

	"go.uber.org/zap"
)

type fixture struct {
	remote     *memory.RemoteStore
	local      *memory.LocalStore
	queue      *offline.Queue
	activities *app.ActivityRepository
	service    *app.ActivityService
	reconciler *app.Reconciler
}

func newFixture(activities ...domain.Activity) *fixture {
	log := zap.NewNop()
	remote := memory.NewRemoteStore(activities...)
	local := memory.NewLocalStore()
	queue := offline.NewQueue(local)
	repo := app.NewActivityRepository(remote, offline.NewActivityCache(local), log)
	writer := app.NewProgressWriter(remote)
	return &fixture{
		remote:     remote,
		local:      local,
		queue:      queue,
		activities: repo,
		service:    app.NewActivityService(memory.NewSessionStore(), remote, repo, app.NewSubmitter(writer, queue, log), log),
		reconciler: app.NewReconciler(writer, queue, log),
	}
}

func threeQuestionActivity(id string) domain.Activity {
	mc := func(prompt, correct string) question.Question {
		return question.Question{
			Explanation: "Resposta: " + correct,
			Body: &question.MultipleChoice{
				Prompt:  prompt,
				Options: []string{correct, "outra"},
				Correct: correct,
			},
		}
	}
	return domain.Activity{
		ID:       id,
		Subject:  "historia",
		Title:    "Independência",
		Position: 1,
		Questions: []question.Question{
			mc("Quem proclamou a independência?", "Dom Pedro I"),
			mc("Em que ano?", "1822"),
			mc("Onde?", "Ipiranga"),
		},
	}
}

func choose(option string) question.Answer {
	return question.Answer{Choice: option}
}
