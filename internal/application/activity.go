package application

import (
	"fmt"

	"github.com/ericfisherdev/pluginsync/internal/domain/model"
)

func upToDateEntry(repo model.RepositorySpec, tag string) model.ActivityEntry {
	return model.ActivityEntry{
		RepoID:   repo.ID,
		Title:    fmt.Sprintf("Release for %s already up to date", repo.FullName()),
		Summary:  fmt.Sprintf("Installed version %s is the latest release.", tag),
		Kind:     model.ActivityUpToDate,
		Severity: model.SeverityInfo,
	}
}

func installedEntry(repo model.RepositorySpec, rel *model.Release, fileName string) model.ActivityEntry {
	notes := rel.Notes()
	return model.ActivityEntry{
		RepoID:     repo.ID,
		Title:      fmt.Sprintf("Plugin %s updated to %s", repo.FullName(), rel.TagName),
		Summary:    fmt.Sprintf("Installed %s from release %s.", fileName, rel.TagName),
		Detail:     notes,
		DetailHTML: RenderNotes(notes),
		Kind:       model.ActivityInstalled,
		Severity:   model.SeverityInfo,
	}
}

func notFoundEntry(repo model.RepositorySpec) model.ActivityEntry {
	return model.ActivityEntry{
		RepoID:   repo.ID,
		Title:    fmt.Sprintf("Release for %s not updated", repo.FullName()),
		Summary:  "No release found.",
		Kind:     model.ActivityNotFound,
		Severity: model.SeverityWarn,
	}
}

func authFailedEntry(repo model.RepositorySpec, err error) model.ActivityEntry {
	return model.ActivityEntry{
		RepoID:   repo.ID,
		Title:    fmt.Sprintf("GitHub authentication failed for %s", repo.FullName()),
		Summary:  "Check that the GitHub token is valid and has the repo scope.",
		Detail:   err.Error(),
		Kind:     model.ActivityAuthFailed,
		Severity: model.SeverityError,
	}
}

func failedEntry(repo model.RepositorySpec, summary, detail string) model.ActivityEntry {
	return model.ActivityEntry{
		RepoID:   repo.ID,
		Title:    fmt.Sprintf("Release %s not updated", repo.FullName()),
		Summary:  summary,
		Detail:   detail,
		Kind:     model.ActivityFailed,
		Severity: model.SeverityError,
	}
}
