package store

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Identity is the git author/committer identity used for every commit the
// store makes, configured from the CLI flags.
type Identity struct {
	Name  string
	Email string
}

func checkGitInstalled() error {
	cmd := exec.Command("git", "--version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git is required: install it and retry: %w", err)
	}
	return nil
}

// runGit runs git in repoDir with the store's author identity set, and
// returns trimmed stdout. Mirrors gitops.rs's run_git.
func runGit(repoDir string, identity Identity, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = repoDir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME="+identity.Name,
		"GIT_AUTHOR_EMAIL="+identity.Email,
		"GIT_COMMITTER_NAME="+identity.Name,
		"GIT_COMMITTER_EMAIL="+identity.Email,
	)
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git %v: %s", args, strings.TrimSpace(string(ee.Stderr)))
		}
		return "", fmt.Errorf("git %v: %w", args, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func isGitRepo(repoDir string, identity Identity) bool {
	out, err := runGit(repoDir, identity, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// bootstrapRepo creates repo/, pastes/, meta/, a README and .gitignore, and
// commits the README and .gitignore as the initial commit if the
// repository has no history yet.
// Grounded on gitops.rs::bootstrap_repo.
func bootstrapRepo(repoDir string, identity Identity) error {
	if err := os.MkdirAll(repoDir, 0o755); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}

	if !isGitRepo(repoDir, identity) {
		if _, err := runGit(repoDir, identity, "init"); err != nil {
			return fmt.Errorf("git init: %w", err)
		}
	}

	if err := os.MkdirAll(joinRepo(repoDir, "pastes"), 0o755); err != nil {
		return fmt.Errorf("create pastes dir: %w", err)
	}
	if err := os.MkdirAll(joinRepo(repoDir, "meta"), 0o755); err != nil {
		return fmt.Errorf("create meta dir: %w", err)
	}

	readme := joinRepo(repoDir, "README.md")
	if _, err := os.Stat(readme); os.IsNotExist(err) {
		if err := os.WriteFile(readme, []byte("# LAN Paste\n\nGit-backed LAN paste store.\n"), 0o644); err != nil {
			return fmt.Errorf("write readme: %w", err)
		}
	}

	gitignore := joinRepo(repoDir, ".gitignore")
	if _, err := os.Stat(gitignore); os.IsNotExist(err) {
		content := "*.tmp\n*.swp\n*.bak\n*.lock\n*.log\n.DS_Store\nThumbs.db\n.idea/\n.vscode/\n"
		if err := os.WriteFile(gitignore, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write gitignore: %w", err)
		}
	}

	if _, err := runGit(repoDir, identity, "rev-parse", "--verify", "HEAD"); err != nil {
		if _, err := runGit(repoDir, identity, "add", "README.md", ".gitignore", "pastes", "meta"); err != nil {
			return fmt.Errorf("git add bootstrap: %w", err)
		}
		if _, err := runGit(repoDir, identity, "commit", "-m", "init lanpaste repository"); err != nil {
			return fmt.Errorf("git commit bootstrap: %w", err)
		}
	}
	return nil
}

func joinRepo(repoDir, rel string) string {
	return repoDir + string(os.PathSeparator) + rel
}

// commitResult is the outcome of the push-policy step after a commit.
type commitResult struct {
	Pushed     bool
	PushErr    error
	RolledBack bool
}

// addAndCommit stages relPath and metaRelPath and commits them with
// subject. Used for the first phase of the two-phase commit: meta still
// carries an empty "commit" field at this point.
func addAndCommit(repoDir string, identity Identity, relPath, metaRelPath, subject string) error {
	if _, err := runGit(repoDir, identity, "add", relPath, metaRelPath); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	if _, err := runGit(repoDir, identity, "commit", "-m", subject); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	return nil
}

func headHash(repoDir string, identity Identity) (string, error) {
	return runGit(repoDir, identity, "rev-parse", "HEAD")
}

// amendCommit re-stages metaRelPath (now rewritten with the real commit
// hash) and folds it into the previous commit without changing the commit
// message, so exactly one commit is ever visible to callers and to
// "recent". Grounded on spec.md §4.1/§9's two-phase amend requirement.
func amendCommit(repoDir string, identity Identity, metaRelPath string) error {
	if _, err := runGit(repoDir, identity, "add", metaRelPath); err != nil {
		return fmt.Errorf("git add (amend): %w", err)
	}
	if _, err := runGit(repoDir, identity, "commit", "--amend", "--no-edit"); err != nil {
		return fmt.Errorf("git commit --amend: %w", err)
	}
	return nil
}

// abortStaged drops whatever has been staged but not committed, used on
// failure before the commit lands.
func abortStaged(repoDir string, identity Identity) {
	_, _ = runGit(repoDir, identity, "reset")
}

// rollbackCommit drops the most recent commit entirely, used on strict
// push failure. Grounded on gitops.rs::commit_paste's PushMode::Strict arm.
func rollbackCommit(repoDir string, identity Identity) error {
	_, err := runGit(repoDir, identity, "reset", "--hard", "HEAD~1")
	return err
}

// runPushPolicy implements the off/best_effort/strict state machine of
// §4.8, grounded on gitops.rs::commit_paste's push_mode match.
func runPushPolicy(repoDir string, identity Identity, push PushMode, remote string) (commitResult, error) {
	switch push {
	case PushOff, "":
		return commitResult{}, nil
	case PushBestEffort:
		_, err := runGit(repoDir, identity, "push", remote, "HEAD")
		return commitResult{Pushed: err == nil, PushErr: err}, nil
	case PushStrict:
		if _, err := runGit(repoDir, identity, "push", remote, "HEAD"); err != nil {
			rollbackErr := rollbackCommit(repoDir, identity)
			return commitResult{RolledBack: rollbackErr == nil}, fmt.Errorf("push failed in strict mode: %w", err)
		}
		return commitResult{Pushed: true}, nil
	default:
		return commitResult{}, fmt.Errorf("unknown push mode %q", push)
	}
}

// readyRepo reports whether repoDir is a git repository with at least one
// commit, used by GET /readyz.
func readyRepo(repoDir string, identity Identity) bool {
	if !isGitRepo(repoDir, identity) {
		return false
	}
	_, err := runGit(repoDir, identity, "rev-parse", "HEAD")
	return err == nil
}
