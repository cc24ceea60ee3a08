package catalog

// Bank is the question pool of one role, grouped by question type.
// SkillTemplates hold one %s placeholder for the skill name.
type Bank struct {
	Intro          []string `json:"intro"`
	Technical      []string `json:"technical"`
	Behavioral     []string `json:"behavioral"`
	Situational    []string `json:"situational"`
	Closing        []string `json:"closing"`
	SkillTemplates []string `json:"skillTemplates,omitempty"`
}

func (b Bank) size() int {
	return len(b.Intro) + len(b.Technical) + len(b.Behavioral) + len(b.Situational) + len(b.Closing)
}

const generalRole = "general"

var commonIntro = []string{
	"Please introduce yourself and tell me what kind of work you enjoy most.",
	"Walk me through your background and what brought you to this role.",
}

var commonBehavioral = []string{
	"Tell me about a time you disagreed with a teammate. How did you resolve it?",
	"Describe a project that did not go as planned. What did you learn?",
	"Tell me about feedback you received that changed how you work.",
	"Describe a time you had to learn something new under time pressure.",
}

var commonClosing = []string{
	"What questions do you have for us about the team or the role?",
	"Is there anything we have not covered that you would like us to know?",
}

var defaultSkillTemplates = []string{
	"Walk me through a project where you used %s. What trade-offs did you make?",
	"What is a common mistake people make with %s, and how do you avoid it?",
}

func builtinBanks() map[string]Bank {
	return map[string]Bank{
		"backend": {
			Intro: commonIntro,
			Technical: []string{
				"How would you design a rate limiter for a public API?",
				"Explain how you would make a payment endpoint idempotent.",
				"When would you choose a message queue over a synchronous call?",
				"How do you find and fix a slow database query in production?",
				"Describe how transactions and isolation levels prevent lost updates.",
			},
			Behavioral: commonBehavioral,
			Situational: []string{
				"A deploy doubled the error rate of a core service at 2am. What do you do first?",
				"Product wants a feature next week that needs a schema migration on a large table. How do you approach it?",
			},
			Closing: commonClosing,
		},
		"frontend": {
			Intro: commonIntro,
			Technical: []string{
				"How does the browser turn HTML, CSS and JavaScript into pixels?",
				"How do you decide where state should live in a component tree?",
				"What causes layout shift and how do you prevent it?",
				"How would you make a large list render smoothly?",
				"Explain how you keep a web app accessible to keyboard and screen reader users.",
			},
			Behavioral: commonBehavioral,
			Situational: []string{
				"Designers hand you a layout that performs poorly on low-end phones. What do you do?",
				"A bug only reproduces in one browser for some users. How do you track it down?",
			},
			Closing: commonClosing,
		},
		"data": {
			Intro: commonIntro,
			Technical: []string{
				"How do you detect and handle data leakage in a model pipeline?",
				"Explain the difference between precision and recall and when each matters.",
				"How would you design a daily batch pipeline that can be safely rerun?",
				"How do you validate that an A/B test result is trustworthy?",
			},
			Behavioral: commonBehavioral,
			Situational: []string{
				"A dashboard shows revenue dropped 30% overnight. How do you investigate?",
				"Stakeholders want a prediction model but there is little labelled data. What do you propose?",
			},
			Closing: commonClosing,
		},
		"devops": {
			Intro: commonIntro,
			Technical: []string{
				"How would you roll out a risky configuration change across many servers?",
				"What do you monitor to know a service is healthy?",
				"Explain how you would structure infrastructure as code for several environments.",
				"How do you keep secrets out of container images and logs?",
			},
			Behavioral: commonBehavioral,
			Situational: []string{
				"Disk usage on the primary database grows 5% per hour. What are your next steps?",
				"A certificate expires in two hours and the owner is unreachable. What do you do?",
			},
			Closing: commonClosing,
		},
		"mobile": {
			Intro: commonIntro,
			Technical: []string{
				"How do you keep an app responsive while syncing data in the background?",
				"How would you design offline support for a note taking app?",
				"What do you consider when releasing a breaking API change to mobile clients?",
				"How do you investigate a crash that only happens on some devices?",
			},
			Behavioral: commonBehavioral,
			Situational: []string{
				"A release increased battery drain complaints. How do you find the cause?",
				"The store review rejected your release the day before launch. What do you do?",
			},
			Closing: commonClosing,
		},
		"pm": {
			Intro: commonIntro,
			Technical: []string{
				"How do you decide what goes into the next release?",
				"Which metrics would you define for a new onboarding flow, and why those?",
				"How do you write a requirement that engineers can estimate?",
				"How do you validate a product idea before building it?",
			},
			Behavioral: commonBehavioral,
			Situational: []string{
				"Engineering says your top priority will take three times longer than planned. What now?",
				"Two important customers ask for conflicting features. How do you decide?",
			},
			Closing: commonClosing,
		},
		generalRole: {
			Intro: commonIntro,
			Technical: []string{
				"Describe the most technically challenging problem you have solved.",
				"How do you make sure the quality of your work stays high under deadlines?",
				"How do you break a large task into smaller pieces?",
			},
			Behavioral: commonBehavioral,
			Situational: []string{
				"You join a team mid-project and the documentation is outdated. How do you get productive?",
				"Your manager and a senior colleague give you opposite instructions. What do you do?",
			},
			Closing: commonClosing,
		},
	}
}

// roleAliases maps free-form job titles to bank names.
var roleAliases = map[string]string{
	"server":    "backend",
	"api":       "backend",
	"web":       "frontend",
	"ui":        "frontend",
	"react":     "frontend",
	"ml":        "data",
	"analyst":   "data",
	"scientist": "data",
	"sre":       "devops",
	"infra":     "devops",
	"platform":  "devops",
	"ios":       "mobile",
	"android":   "mobile",
	"product":   "pm",
	"manager":   "pm",
}
