package prompt

import (
	"fmt"
	"strings"
)

// Builder turns a learner's question and its study context into a prompt
// for the video service. All methods are pure functions with no side effects.
// Zero value is ready to use.
type Builder struct{}

// ChapterParams describes a question asked while reading a chapter.
type ChapterParams struct {
	Question      string
	CourseTitle   string
	CourseGrade   string
	ChapterTitle  string
	ChapterNumber int
	TotalChapters int
}

// ExerciseParams describes a question asked while solving a multiple choice exercise.
// Answer indexes are zero based; nil means the learner has not answered.
type ExerciseParams struct {
	Question       string
	ChapterTitle   string
	ExerciseNumber int
	ProblemText    string
	Options        []string
	UserAnswer     *int
	CorrectAnswer  *int
}

// BuildGeneral returns a prompt for a question without study context.
func (b Builder) BuildGeneral(question string) string {
	return fmt.Sprintf("Create an educational video for this question:\nQUESTION: %q", strings.TrimSpace(question))
}

// BuildChapter returns a prompt grounded in the chapter being read.
func (b Builder) BuildChapter(p ChapterParams) string {
	grade := p.CourseGrade
	if grade == "" {
		grade = "general audience"
	}

	lines := []string{
		fmt.Sprintf("Create a %s educational video about %q for this question:", grade, p.ChapterTitle),
		"",
		fmt.Sprintf("QUESTION: %q", strings.TrimSpace(p.Question)),
		"",
		fmt.Sprintf("CONTEXT: %s - Chapter %d/%d", p.CourseTitle, p.ChapterNumber, p.TotalChapters),
		"",
		"REQUIREMENTS:",
		"- Clear step-by-step visual explanation",
		"- Focus on the specific concept asked",
		"- Use animations for mathematical concepts",
		"- Include concrete examples",
		"- 30-60 seconds duration",
		"",
		fmt.Sprintf("Make it engaging and easy to understand for %s students.", grade),
	}
	return strings.Join(lines, "\n")
}

// BuildExercise returns a prompt that walks through the exercise solution.
func (b Builder) BuildExercise(p ExerciseParams) string {
	lines := []string{
		fmt.Sprintf("Create an educational video for Exercise #%d from %s:", p.ExerciseNumber, p.ChapterTitle),
		"",
		fmt.Sprintf("QUESTION: %q", strings.TrimSpace(p.Question)),
		"",
		fmt.Sprintf("PROBLEM: %q", p.ProblemText),
	}
	if opts := b.buildOptions(p.Options); opts != "" {
		lines = append(lines, "Options: "+opts)
	}
	lines = append(lines, "")

	answered := p.UserAnswer != nil && p.CorrectAnswer != nil
	if answered {
		lines = append(lines, fmt.Sprintf("Student chose %s but correct is %s.",
			optionLetter(*p.UserAnswer), optionLetter(*p.CorrectAnswer)))
	} else {
		lines = append(lines, "Student needs help solving this.")
	}

	lines = append(lines,
		"",
		"REQUIREMENTS:",
		"- Step-by-step visual solution",
		"- Explain why correct answer is right",
	)
	if answered && *p.UserAnswer != *p.CorrectAnswer {
		lines = append(lines, fmt.Sprintf("- Show why %s is wrong", optionLetter(*p.UserAnswer)))
	}
	lines = append(lines,
		"- Use clear animations",
		"- 45-90 seconds",
		"",
		"Make it engaging and educational.",
	)
	return strings.Join(lines, "\n")
}

func (b Builder) buildOptions(options []string) string {
	parts := make([]string, 0, len(options))
	for i, o := range options {
		if i > 3 {
			break
		}
		parts = append(parts, fmt.Sprintf("%s %s", optionLetter(i), o))
	}
	return strings.Join(parts, " ")
}

func optionLetter(i int) string {
	if i < 0 || i > 3 {
		return "?"
	}
	return string(rune('A'+i)) + ")"
}
